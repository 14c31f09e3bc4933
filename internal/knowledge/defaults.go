package knowledge

import (
	"github.com/levelapp/funnel/internal/domain"
	"github.com/levelapp/funnel/internal/pricing"
)

// DefaultEntries returns the seed content of every section, built from the
// live pricing catalog and the agency's published material.
func DefaultEntries() []*domain.KnowledgeEntry {
	return []*domain.KnowledgeEntry{
		domain.NewKnowledgeEntry("Tarification Level App", defaultPricing(), 100),
		domain.NewKnowledgeEntry("Questions Fréquentes", defaultFAQ(), 90),
		domain.NewKnowledgeEntry("À propos de Level App", defaultCompanyInfo(), 80),
		domain.NewKnowledgeEntry("Études de cas", defaultCaseStudies(), 70),
		domain.NewKnowledgeEntry("Notre Processus", defaultProcess(), 60),
		domain.NewKnowledgeEntry("Contexte personnalisé", domain.CustomContextContent{
			Instructions: "Ajoutez ici des instructions supplémentaires pour le chatbot.",
		}, 50),
	}
}

func defaultPricing() domain.PricingContent {
	catalog := pricing.Options()

	content := domain.PricingContent{}
	for _, p := range catalog.Plans {
		content.Plans = append(content.Plans, domain.PricingPlan{
			Name:        p.Label,
			BasePrice:   p.Price,
			Description: p.Description,
			Features:    p.Features,
		})
	}
	for _, p := range catalog.Packs {
		content.Packs = append(content.Packs, domain.PricingPack{
			Name:        p.Label,
			Price:       p.Price,
			Description: p.Description,
			Features:    p.Features,
		})
	}
	for _, u := range catalog.Urgency {
		content.Urgency = append(content.Urgency, domain.UrgencyOption{
			Label:       u.Label,
			Multiplier:  u.Multiplier,
			Description: u.Description,
		})
	}
	for _, m := range catalog.Maintenance {
		content.Maintenance = append(content.Maintenance, domain.MaintenanceOption{
			Label:        m.Label,
			MonthlyPrice: m.Price,
			Description:  m.Description,
		})
	}
	for _, s := range catalog.ExtraScreens {
		content.ExtraScreens = append(content.ExtraScreens, domain.LabeledPrice{Label: string(s.Tier), Price: s.Price})
	}
	return content
}

func defaultFAQ() domain.FAQContent {
	return domain.FAQContent{Items: []domain.FAQItem{
		{
			Question: "Combien coûte le développement d'une application ?",
			Answer:   "Le budget démarre à partir de 2 000 € pour un MVP avec un périmètre défini. Le coût final dépend des fonctionnalités, du design et de la complexité du projet. Une estimation claire est fournie avant tout engagement.",
		},
		{
			Question: "En combien de temps mon application est-elle développée ?",
			Answer:   "La majorité des projets sont livrés en 30 jours, une fois le périmètre validé. Les applications plus complexes peuvent évoluer par itérations successives.",
		},
		{
			Question: "L'application sera-t-elle disponible sur l'App Store et Google Play ?",
			Answer:   "Oui, si vous le souhaitez. Nous développons aussi des applications privées, non listées sur les stores, pour des projets internes, confidentiels ou en phase de test.",
		},
		{
			Question: "Je n'ai pas de connaissances techniques, est-ce un problème ?",
			Answer:   "Absolument pas. Level App vous accompagne de la définition du projet jusqu'à la livraison. Vous n'avez pas besoin d'être développeur pour lancer une application.",
		},
		{
			Question: "Puis-je commencer avec un MVP et faire évoluer l'app ensuite ?",
			Answer:   "Oui, c'est même notre approche recommandée. Nous construisons une première version utile et fonctionnelle, puis faisons évoluer l'application selon vos retours et objectifs.",
		},
		{
			Question: "Mon projet est-il confidentiel ?",
			Answer:   "Oui. Tous les projets sont traités avec confidentialité, et peuvent être couverts par un accord de confidentialité si nécessaire.",
		},
		{
			Question: "Travaillez-vous uniquement sur des apps grand public ?",
			Answer:   "Non. Nous développons aussi bien des applications B2B, des apps métiers, que des applications grand public avec abonnement.",
		},
		{
			Question: "Que se passe-t-il après la livraison ?",
			Answer:   "Vous êtes libre : d'utiliser l'application telle quelle, de la faire évoluer avec Level App, ou de poursuivre le développement à votre rythme. Aucune dépendance imposée.",
		},
		{
			Question: "Comment démarrer un projet ?",
			Answer:   "Il suffit de réserver un appel gratuit. Nous échangeons sur votre idée, votre besoin et votre budget, puis vous recevez une proposition claire.",
		},
	}}
}

func defaultCompanyInfo() domain.CompanyInfoContent {
	return domain.CompanyInfoContent{
		Name:        "Level App",
		Description: "Agence de développement d'applications mobiles et web spécialisée dans la création de solutions sur mesure pour les entrepreneurs et entreprises.",
		Mission:     "Transformer vos idées en applications performantes et rentables, avec un accompagnement de A à Z.",
		Values: []string{
			"Transparence totale sur les prix et les délais",
			"Qualité premium sans compromis",
			"Accompagnement personnalisé",
			"Pas de dépendance imposée",
		},
		Contact: domain.CompanyContact{Email: "contact@levelapp.fr"},
	}
}

func defaultCaseStudies() domain.CaseStudyContent {
	return domain.CaseStudyContent{Projects: []domain.CaseStudy{
		{
			Name:      "Patrimonia",
			Type:      "Fintech",
			ShortDesc: "Application mobile interne pour gestionnaires de patrimoine - piloter, projeter et présenter les placements clients.",
			Problem:   "Les gestionnaires de patrimoine jonglaient entre plusieurs outils (Excel, PDF, présentations PowerPoint) pour suivre et présenter les portefeuilles de leurs clients.",
			Solution:  "Une application React Native avec un backend Node.js sécurisé, des graphiques interactifs, des outils de simulation et la génération automatique de rapports PDF.",
			Results: []string{
				"Temps de préparation des rendez-vous réduit de 60%",
				"Présentation client professionnelle et interactive",
				"Adoption complète par l'équipe en moins de 2 semaines",
			},
			Tags: []string{"React Native", "Node.js", "PostgreSQL", "Charts"},
		},
		{
			Name:      "Interior AI",
			Type:      "AI / Real Estate",
			ShortDesc: "App mobile pour agents immobiliers - générer des propositions de déco intérieure par IA.",
			Problem:   "Les agents immobiliers peinent à aider les acheteurs à se projeter dans un bien vide ou mal agencé, et le home staging traditionnel est coûteux.",
			Solution:  "Une application mobile connectée à une API d'intelligence artificielle qui génère en quelques secondes un visuel réaliste de la pièce meublée.",
			Results: []string{
				"Génération d'un visuel déco en moins de 30 secondes",
				"Réduction des coûts vs home staging traditionnel",
				"Outil adopté par plus de 50 agents en 3 mois",
			},
			Tags: []string{"React Native", "API IA", "Firebase", "Cloud storage"},
		},
		{
			Name:      "Neurocase",
			Type:      "Medtech",
			ShortDesc: "App mobile sécurisée pour chirurgiens en neurologie - suivi de cas cliniques et préparation opératoire.",
			Problem:   "Les neurochirurgiens avaient besoin d'un outil personnel pour centraliser leurs cas cliniques dans le respect des exigences de confidentialité du secteur médical.",
			Solution:  "Une application React Native avec chiffrement de bout en bout, authentification renforcée et consultation d'imageries médicales.",
			Results: []string{
				"Adoption par une équipe de 12 chirurgiens",
				"Conformité aux exigences de confidentialité médicale",
				"Accès aux cas critiques même hors connexion",
			},
			Tags: []string{"React Native", "Node.js sécurisé", "Chiffrement", "Auth renforcée"},
		},
		{
			Name:      "ScanEat",
			Type:      "FoodTech",
			ShortDesc: "Analyse instantanée d'un repas par photo pour estimer calories et macronutriments.",
			Problem:   "Suivre son alimentation est fastidieux et la plupart des utilisateurs abandonnent leur suivi après quelques jours.",
			Solution:  "Une application React Native connectée à une API d'IA qui reconnaît les aliments d'une photo et estime leurs valeurs nutritionnelles.",
			Results: []string{
				"Analyse d'un repas en moins de 5 secondes",
				"Modèle freemium avec conversion premium à 8%",
				"Plus de 10 000 repas analysés le premier mois",
			},
			Tags: []string{"React Native", "API IA", "Firebase", "Analytics"},
		},
	}}
}

func defaultProcess() domain.ProcessContent {
	return domain.ProcessContent{Steps: []domain.ProcessStep{
		{
			Title:       "Appel découverte",
			Description: "Échange gratuit de 30 minutes pour comprendre votre projet, vos objectifs et votre budget.",
			Duration:    "30 min",
		},
		{
			Title:       "Proposition & Devis",
			Description: "Vous recevez une proposition claire avec périmètre, prix et délais. Pas de surprise.",
			Duration:    "24-48h",
		},
		{
			Title:       "Développement",
			Description: "Nous développons votre application avec des points d'avancement réguliers.",
			Duration:    "2-6 semaines",
		},
		{
			Title:       "Livraison & Support",
			Description: "Votre application est livrée, déployée et vous gardez la main sur les évolutions futures.",
			Duration:    "Continu",
		},
	}}
}
