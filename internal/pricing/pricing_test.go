package pricing

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/levelapp/funnel/internal/domain"
)

func baseSelection() domain.Selection {
	return domain.Selection{
		ScreenCount:  5,
		AppType:      domain.AppTypeMobile,
		AuthLevel:    domain.AuthNone,
		PaymentNeeds: domain.PaymentNone,
		Design:       domain.Design{Style: domain.DesignMinimal},
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.Selection)
		want   EstimateResult
	}{
		{
			name:   "minimal selection is base price only",
			mutate: func(s *domain.Selection) {},
			want: EstimateResult{Min: 1700, Max: 2300, Breakdown: []Line{
				{"Prix de base", 2000},
			}},
		},
		{
			name: "extra screens and email auth",
			mutate: func(s *domain.Selection) {
				s.ScreenCount = 10
				s.AuthLevel = domain.AuthEmail
			},
			want: EstimateResult{Min: 2763, Max: 3738, Breakdown: []Line{
				{"Prix de base", 2000},
				{"5 écrans supplémentaires", 750},
				{"Email / Mot de passe", 500},
			}},
		},
		{
			name: "web discount scales base and screens only",
			mutate: func(s *domain.Selection) {
				s.ScreenCount = 10
				s.AppType = domain.AppTypeWeb
				s.PaymentNeeds = domain.PaymentSubscription
			},
			want: EstimateResult{Min: 2890, Max: 3910, Breakdown: []Line{
				{"Prix de base", 2000},
				{"5 écrans supplémentaires", 750},
				{"Application Web", -550},
				{"Abonnement", 1200},
			}},
		},
		{
			name: "everything selected",
			mutate: func(s *domain.Selection) {
				s.ScreenCount = 30
				s.AppType = domain.AppTypeBoth
				s.AuthLevel = domain.AuthMultiUser
				s.PaymentNeeds = domain.PaymentBoth
				s.AdditionalFeatures = []domain.Feature{domain.FeatureChat, domain.FeatureGeolocation}
				s.Design.Style = domain.DesignCustom
			},
			want: EstimateResult{Min: 13621, Max: 18429, Breakdown: []Line{
				{"Prix de base", 2000},
				{"25 écrans supplémentaires", 3750},
				{"Web + Mobile", 2875},
				{"Multi-utilisateurs", 1200},
				{"Les deux", 1500},
				{"Messagerie", 1200},
				{"Géolocalisation", 1000},
				{"Design Sur mesure", 2500},
			}},
		},
		{
			name: "unknown identifiers contribute nothing",
			mutate: func(s *domain.Selection) {
				s.AppType = "desktop"
				s.AuthLevel = "biometric"
				s.AdditionalFeatures = []domain.Feature{"teleport"}
				s.Design.Style = "brutalist"
			},
			want: EstimateResult{Min: 1700, Max: 2300, Breakdown: []Line{
				{"Prix de base", 2000},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := baseSelection()
			tt.mutate(&sel)

			got := Estimate(sel)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Estimate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEstimate_Properties(t *testing.T) {
	styles := domain.DesignStyles
	for _, appType := range domain.AppTypes {
		for _, auth := range domain.AuthLevels {
			for _, style := range styles {
				prevTotal := -1
				for screens := domain.MinScreenCount; screens <= domain.MaxScreenCount; screens++ {
					sel := baseSelection()
					sel.AppType = appType
					sel.AuthLevel = auth
					sel.Design.Style = style
					sel.ScreenCount = screens

					first := Estimate(sel)
					second := Estimate(sel)
					if diff := cmp.Diff(first, second); diff != "" {
						t.Fatalf("Estimate() not deterministic for %+v:\n%s", sel, diff)
					}
					if first.Min < 0 || first.Min > first.Max {
						t.Fatalf("invalid band %d..%d for %+v", first.Min, first.Max, sel)
					}
					total := first.Total()
					if total < prevTotal {
						t.Fatalf("total decreased from %d to %d at %d screens (%+v)", prevTotal, total, screens, sel)
					}
					prevTotal = total
				}
			}
		}
	}
}

func TestQuotePrice(t *testing.T) {
	tests := []struct {
		name string
		sel  domain.QuoteSelection
		want QuoteResult
	}{
		{
			name: "identity with no discount and normal urgency",
			sel: domain.QuoteSelection{
				SelectedPlan:  domain.PlanBusiness,
				SelectedPacks: []domain.Pack{domain.PackPayment, domain.PackAuth},
				Logistics:     domain.Logistics{Urgency: domain.UrgencyNormal, Maintenance: domain.MaintenanceStandard},
			},
			want: QuoteResult{
				Subtotal: 7000, UrgencyMultiplier: 1, Total: 7000, MonthlyMaintenance: 400,
				Breakdown: []Line{
					{"Plan Business", 5000},
					{"Pack Paiement", 1200},
					{"Pack Authentification", 800},
				},
			},
		},
		{
			name: "discount then urgency",
			sel: domain.QuoteSelection{
				SelectedPlan: domain.PlanStarter,
				ExtraScreens: map[domain.ScreenTier]int{
					domain.TierComplex:  2,
					domain.TierSimple:   3,
					domain.TierStandard: 0,
				},
				Discount:  10,
				Logistics: domain.Logistics{Urgency: domain.UrgencyFast, Maintenance: domain.MaintenanceNone},
			},
			want: QuoteResult{
				Subtotal: 3650, Discount: 365, UrgencyMultiplier: 1.3, Total: 4271, MonthlyMaintenance: 0,
				Breakdown: []Line{
					{"Plan Starter", 2000},
					{"3 écrans simple", 450},
					{"2 écrans complex", 1200},
				},
			},
		},
		{
			name: "unknown plan contributes nothing",
			sel: domain.QuoteSelection{
				SelectedPlan:  "enterprise",
				SelectedPacks: []domain.Pack{domain.PackAdmin, "unknown_pack"},
				ExtraScreens:  map[domain.ScreenTier]int{domain.TierVeryComplex: 1, "holographic": 4},
				Logistics:     domain.Logistics{Urgency: "yesterday", Maintenance: "platinum"},
			},
			want: QuoteResult{
				Subtotal: 2700, UrgencyMultiplier: 1, Total: 2700, MonthlyMaintenance: 0,
				Breakdown: []Line{
					{"Pack Admin", 1500},
					{"1 écrans very_complex", 1200},
				},
			},
		},
		{
			name: "full discount",
			sel: domain.QuoteSelection{
				SelectedPlan: domain.PlanPremium,
				Discount:     100,
				Logistics:    domain.Logistics{Urgency: domain.UrgencyUrgent, Maintenance: domain.MaintenancePremium},
			},
			want: QuoteResult{
				Subtotal: 12000, Discount: 12000, UrgencyMultiplier: 1.6, Total: 0, MonthlyMaintenance: 800,
				Breakdown: []Line{{"Plan Premium", 12000}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuotePrice(tt.sel)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("QuotePrice() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeliveryWeeks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.Selection)
		want   int
	}{
		{"base", func(s *domain.Selection) {}, 4},
		{"16 screens", func(s *domain.Selection) { s.ScreenCount = 16 }, 5},
		{"26 screens", func(s *domain.Selection) { s.ScreenCount = 26 }, 6},
		{"multi user", func(s *domain.Selection) { s.AuthLevel = domain.AuthMultiUser }, 5},
		{"both payments", func(s *domain.Selection) { s.PaymentNeeds = domain.PaymentBoth }, 5},
		{"three features", func(s *domain.Selection) {
			s.AdditionalFeatures = []domain.Feature{domain.FeatureChat, domain.FeatureSearch, domain.FeatureCalendar}
		}, 4},
		{"four features", func(s *domain.Selection) {
			s.AdditionalFeatures = []domain.Feature{domain.FeatureChat, domain.FeatureSearch, domain.FeatureCalendar, domain.FeatureAnalytics}
		}, 5},
		{"premium design", func(s *domain.Selection) { s.Design.Style = domain.DesignPremium }, 5},
		{"custom design", func(s *domain.Selection) { s.Design.Style = domain.DesignCustom }, 5},
		{"modern design", func(s *domain.Selection) { s.Design.Style = domain.DesignModern }, 4},
		{"everything", func(s *domain.Selection) {
			s.ScreenCount = 30
			s.AuthLevel = domain.AuthMultiUser
			s.PaymentNeeds = domain.PaymentBoth
			s.AdditionalFeatures = []domain.Feature{domain.FeatureChat, domain.FeatureSearch, domain.FeatureCalendar, domain.FeatureAnalytics}
			s.Design.Style = domain.DesignCustom
		}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := baseSelection()
			tt.mutate(&sel)
			if got := DeliveryWeeks(sel); got != tt.want {
				t.Errorf("DeliveryWeeks() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPriceRangeText(t *testing.T) {
	tests := []struct {
		min, max int
		want     string
	}{
		{1700, 2300, "1\u202f700 € - 2\u202f300 €"},
		{2000, 2000, "2\u202f000 €"},
		{850, 1150, "850 € - 1\u202f150 €"},
		{1234567, 1234567, "1\u202f234\u202f567 €"},
	}

	for _, tt := range tests {
		if got := PriceRangeText(tt.min, tt.max); got != tt.want {
			t.Errorf("PriceRangeText(%d, %d) = %q, want %q", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestDeliveryText(t *testing.T) {
	if got := DeliveryText(1); got != "1 semaine" {
		t.Errorf("DeliveryText(1) = %q", got)
	}
	if got := DeliveryText(6); got != "6 semaines" {
		t.Errorf("DeliveryText(6) = %q", got)
	}
}

func TestOptions(t *testing.T) {
	c := Options()
	if len(c.Features) != len(domain.Features) {
		t.Errorf("expected %d features, got %d", len(domain.Features), len(c.Features))
	}
	for i, f := range domain.Features {
		if c.Features[i].ID != string(f) {
			t.Errorf("feature %d: expected %s, got %s", i, f, c.Features[i].ID)
		}
	}
	if c.ExtraScreens[0].Tier != domain.TierSimple || c.ExtraScreens[3].Price != 1200 {
		t.Errorf("unexpected extra screen catalog: %+v", c.ExtraScreens)
	}

	c.Plans[0].Price = 1
	if Options().Plans[0].Price != 2000 {
		t.Error("Options() must return a copy")
	}

	want := Options().Plans[0].Features[0]
	c.Plans[0].Features[0] = "modifié"
	if got := Options().Plans[0].Features[0]; got != want {
		t.Errorf("plan features must be copied, got %q", got)
	}
}
