// Package pricing computes calculator estimates and admin quote prices from
// closed option catalogs. Every function in this package is pure.
package pricing

import "github.com/levelapp/funnel/internal/domain"

// Estimate constants.
const (
	BasePrice           = 2000
	PricePerExtraScreen = 150
	FreeScreens         = 5
	VariancePercent     = 15
)

// Option is one priced entry of a catalog.
type Option struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Price       int      `json:"price"`
	Features    []string `json:"features,omitempty"`
	Recommended bool     `json:"recommended,omitempty"`
}

// Modifier is a catalog entry that scales a price instead of adding to it.
type Modifier struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Multiplier  float64 `json:"multiplier"`
}

var appTypes = []Modifier{
	{string(domain.AppTypeMobile), "Application Mobile", "iOS et Android avec React Native", 1},
	{string(domain.AppTypeWeb), "Application Web", "Site web responsive", 0.8},
	{string(domain.AppTypeBoth), "Web + Mobile", "Les deux plateformes", 1.5},
}

var authLevels = []Option{
	{ID: string(domain.AuthNone), Label: "Pas de connexion", Description: "Application sans authentification", Price: 0},
	{ID: string(domain.AuthEmail), Label: "Email / Mot de passe", Description: "Connexion classique par email", Price: 500},
	{ID: string(domain.AuthSocial), Label: "Social Login", Description: "Google, Apple, Facebook + Email", Price: 800},
	{ID: string(domain.AuthMultiUser), Label: "Multi-utilisateurs", Description: "Rôles et permissions avancés", Price: 1200},
}

var payments = []Option{
	{ID: string(domain.PaymentNone), Label: "Pas de paiement", Description: "Application gratuite", Price: 0},
	{ID: string(domain.PaymentOneTime), Label: "Paiement unique", Description: "Achats ponctuels (Stripe)", Price: 800},
	{ID: string(domain.PaymentSubscription), Label: "Abonnement", Description: "Paiements récurrents", Price: 1200},
	{ID: string(domain.PaymentBoth), Label: "Les deux", Description: "Achat unique + Abonnement", Price: 1500},
}

var features = []Option{
	{ID: string(domain.FeatureGeolocation), Label: "Géolocalisation", Description: "Cartes et localisation", Price: 1000},
	{ID: string(domain.FeatureChat), Label: "Messagerie", Description: "Chat en temps réel", Price: 1200},
	{ID: string(domain.FeatureNotifications), Label: "Notifications Push", Description: "Alertes et rappels", Price: 600},
	{ID: string(domain.FeatureAdminDashboard), Label: "Dashboard Admin", Description: "Interface d'administration", Price: 1500},
	{ID: string(domain.FeatureAnalytics), Label: "Analytics", Description: "Suivi et statistiques", Price: 800},
	{ID: string(domain.FeatureFileUpload), Label: "Upload de fichiers", Description: "Images, documents, médias", Price: 500},
	{ID: string(domain.FeatureCalendar), Label: "Calendrier", Description: "Gestion de rendez-vous", Price: 900},
	{ID: string(domain.FeatureSearch), Label: "Recherche avancée", Description: "Filtres et recherche", Price: 600},
}

var designStyles = []Option{
	{ID: string(domain.DesignMinimal), Label: "Minimaliste", Description: "Design épuré et fonctionnel", Price: 0},
	{ID: string(domain.DesignModern), Label: "Moderne", Description: "Tendances actuelles", Price: 500},
	{ID: string(domain.DesignPremium), Label: "Premium", Description: "Design haut de gamme", Price: 1500},
	{ID: string(domain.DesignCustom), Label: "Sur mesure", Description: "Branding personnalisé complet", Price: 2500},
}

var plans = []Option{
	{
		ID: string(domain.PlanStarter), Label: "Starter", Description: "Pour les MVPs et premiers lancements", Price: 2000,
		Features: []string{"Jusqu'à 10 écrans", "Design standard", "Support email", "Livraison 4 semaines"},
	},
	{
		ID: string(domain.PlanBusiness), Label: "Business", Description: "Pour les projets établis", Price: 5000,
		Features:    []string{"Jusqu'à 25 écrans", "Design premium", "Support prioritaire", "Dashboard admin", "Livraison 6 semaines"},
		Recommended: true,
	},
	{
		ID: string(domain.PlanPremium), Label: "Premium", Description: "Solutions entreprise", Price: 12000,
		Features: []string{"Écrans illimités", "Design sur mesure", "Support dédié", "Architecture scalable", "Maintenance 6 mois incluse"},
	},
}

var packs = []Option{
	{
		ID: string(domain.PackAuth), Label: "Pack Authentification", Description: "Système de connexion complet", Price: 800,
		Features: []string{"Email/Password", "Social Login", "Gestion de profil"},
	},
	{
		ID: string(domain.PackPayment), Label: "Pack Paiement", Description: "Intégration Stripe complète", Price: 1200,
		Features: []string{"Paiement unique", "Abonnements", "Factures automatiques"},
	},
	{
		ID: string(domain.PackAdmin), Label: "Pack Admin", Description: "Dashboard d'administration", Price: 1500,
		Features: []string{"Vue d'ensemble", "Gestion utilisateurs", "Analytics"},
	},
	{
		ID: string(domain.PackNotification), Label: "Pack Notifications", Description: "Notifications push et emails", Price: 600,
		Features: []string{"Push iOS/Android", "Emails transactionnels", "Templates"},
	},
}

var extraScreenPrices = map[domain.ScreenTier]int{
	domain.TierSimple:      150,
	domain.TierStandard:    300,
	domain.TierComplex:     600,
	domain.TierVeryComplex: 1200,
}

var urgencies = []Modifier{
	{string(domain.UrgencyNormal), "Normal", "4-6 semaines", 1},
	{string(domain.UrgencyFast), "Rapide", "2-3 semaines", 1.3},
	{string(domain.UrgencyUrgent), "Urgent", "1-2 semaines", 1.6},
}

var maintenances = []Option{
	{ID: string(domain.MaintenanceNone), Label: "Sans maintenance", Description: "Support limité après livraison", Price: 0},
	{ID: string(domain.MaintenanceBasic), Label: "Maintenance Basic", Description: "Corrections de bugs", Price: 200},
	{ID: string(domain.MaintenanceStandard), Label: "Maintenance Standard", Description: "Bugs + petites évolutions", Price: 400},
	{ID: string(domain.MaintenancePremium), Label: "Maintenance Premium", Description: "Support complet + évolutions", Price: 800},
}

func findOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

func findModifier(mods []Modifier, id string) (Modifier, bool) {
	for _, m := range mods {
		if m.ID == id {
			return m, true
		}
	}
	return Modifier{}, false
}

// ExtraScreenPrice is the unit price of one tier.
type ExtraScreenPrice struct {
	Tier  domain.ScreenTier `json:"tier"`
	Price int               `json:"price"`
}

// Catalog is every option set, for rendering the wizard and the quote builder.
type Catalog struct {
	BasePrice           int                `json:"basePrice"`
	PricePerExtraScreen int                `json:"pricePerExtraScreen"`
	FreeScreens         int                `json:"freeScreens"`
	MinScreens          int                `json:"minScreens"`
	MaxScreens          int                `json:"maxScreens"`
	AppTypes            []Modifier         `json:"appTypes"`
	AuthLevels          []Option           `json:"authLevels"`
	PaymentNeeds        []Option           `json:"paymentNeeds"`
	Features            []Option           `json:"features"`
	DesignStyles        []Option           `json:"designStyles"`
	Plans               []Option           `json:"plans"`
	Packs               []Option           `json:"packs"`
	ExtraScreens        []ExtraScreenPrice `json:"extraScreens"`
	Urgency             []Modifier         `json:"urgency"`
	Maintenance         []Option           `json:"maintenance"`
}

// Options returns a deep copy of the catalogs. Callers may modify it freely.
func Options() Catalog {
	extra := make([]ExtraScreenPrice, 0, len(domain.ScreenTiers))
	for _, tier := range domain.ScreenTiers {
		extra = append(extra, ExtraScreenPrice{Tier: tier, Price: extraScreenPrices[tier]})
	}
	return Catalog{
		BasePrice:           BasePrice,
		PricePerExtraScreen: PricePerExtraScreen,
		FreeScreens:         FreeScreens,
		MinScreens:          domain.MinScreenCount,
		MaxScreens:          domain.MaxScreenCount,
		AppTypes:            append([]Modifier(nil), appTypes...),
		AuthLevels:          copyOptions(authLevels),
		PaymentNeeds:        copyOptions(payments),
		Features:            copyOptions(features),
		DesignStyles:        copyOptions(designStyles),
		Plans:               copyOptions(plans),
		Packs:               copyOptions(packs),
		ExtraScreens:        extra,
		Urgency:             append([]Modifier(nil), urgencies...),
		Maintenance:         copyOptions(maintenances),
	}
}

func copyOptions(src []Option) []Option {
	out := make([]Option, len(src))
	for i, o := range src {
		o.Features = append([]string(nil), o.Features...)
		out[i] = o
	}
	return out
}
