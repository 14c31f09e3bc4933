package knowledge

// FallbackKnowledge is used in place of the entries when the store has none.
const FallbackKnowledge = `
## TARIFICATION

### Plans disponibles:
- **Starter** (2000€): Pour les MVPs et premiers lancements
  Inclus: Jusqu'à 10 écrans, Design standard, Support email, Livraison 4 semaines
- **Business** (5000€): Pour les projets établis (Recommandé)
  Inclus: Jusqu'à 25 écrans, Design premium, Support prioritaire, Dashboard admin, Livraison 6 semaines
- **Premium** (12000€): Solutions entreprise
  Inclus: Écrans illimités, Design sur mesure, Support dédié, Architecture scalable, Maintenance 6 mois incluse

### Packs additionnels:
- **Pack Authentification** (800€): Email/Password, Social Login, Gestion de profil
- **Pack Paiement** (1200€): Paiement unique, Abonnements, Factures automatiques
- **Pack Admin** (1500€): Vue d'ensemble, Gestion utilisateurs, Analytics
- **Pack Notifications** (600€): Push iOS/Android, Emails transactionnels, Templates

### Options d'urgence:
- Normal: 4-6 semaines (x1)
- Rapide: 2-3 semaines (x1.3)
- Urgent: 1-2 semaines (x1.6)

## FAQ

**Q: Combien coûte le développement d'une application ?**
R: Le budget démarre à partir de 2 000€ pour un MVP avec un périmètre défini. Le coût final dépend des fonctionnalités, du design et de la complexité du projet.

**Q: En combien de temps mon application est-elle développée ?**
R: La majorité des projets sont livrés en 30 jours, une fois le périmètre validé. Les applications plus complexes peuvent évoluer par itérations successives.

**Q: L'application sera-t-elle disponible sur l'App Store et Google Play ?**
R: Oui, si vous le souhaitez. Nous développons aussi des applications privées, non listées sur les stores.

**Q: Je n'ai pas de connaissances techniques, est-ce un problème ?**
R: Absolument pas. Level App vous accompagne de la définition du projet jusqu'à la livraison.

**Q: Puis-je commencer avec un MVP et faire évoluer l'app ensuite ?**
R: Oui, c'est même notre approche recommandée.

**Q: Mon projet est-il confidentiel ?**
R: Oui. Tous les projets sont traités avec confidentialité.

**Q: Comment démarrer un projet ?**
R: Réservez un appel gratuit. Nous échangeons sur votre idée, votre besoin et votre budget, puis vous recevez une proposition claire.

## À PROPOS DE LEVEL APP

Level App est une agence de développement d'applications mobiles et web spécialisée dans la création de solutions sur mesure pour les entrepreneurs et entreprises.

**Mission:** Transformer vos idées en applications performantes et rentables.

**Services:**
- Développement d'applications mobiles (iOS, Android)
- Applications web et SaaS
- Automatisations et intégrations
- Landing pages et sites vitrines
`
