package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelection_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(s *Selection)
		wantFields []string
	}{
		{"default is valid", func(s *Selection) {}, nil},
		{"screen count too low", func(s *Selection) { s.ScreenCount = 2 }, []string{"screenCount"}},
		{"screen count too high", func(s *Selection) { s.ScreenCount = 31 }, []string{"screenCount"}},
		{"unknown app type", func(s *Selection) { s.AppType = "desktop" }, []string{"appType"}},
		{"missing auth level", func(s *Selection) { s.AuthLevel = "" }, []string{"authLevel"}},
		{"unknown payment", func(s *Selection) { s.PaymentNeeds = "crypto" }, []string{"paymentNeeds"}},
		{"unknown style", func(s *Selection) { s.Design.Style = "brutalist" }, []string{"design.style"}},
		{
			"duplicate feature",
			func(s *Selection) { s.AdditionalFeatures = []Feature{FeatureChat, FeatureChat} },
			[]string{"additionalFeatures"},
		},
		{
			"unknown feature",
			func(s *Selection) { s.AdditionalFeatures = []Feature{"teleport"} },
			[]string{"additionalFeatures"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := DefaultSelection()
			tt.mutate(&sel)

			errs := sel.Validate()
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestSelection_HasFeature(t *testing.T) {
	sel := DefaultSelection()
	sel.AdditionalFeatures = []Feature{FeatureSearch, FeatureCalendar}

	assert.True(t, sel.HasFeature(FeatureSearch))
	assert.False(t, sel.HasFeature(FeatureChat))
}

func TestContact_Validate(t *testing.T) {
	valid := Contact{Email: "jean@example.fr", Name: "Jean Dupont", Phone: "06 12 34 56 78"}
	assert.Empty(t, valid.Validate())

	errs := Contact{Email: "not-an-email", Name: "J", Phone: "+1 415 555 1234"}.Validate()
	require.Len(t, errs, 3)
	assert.Len(t, errs.FieldErrors("email"), 1)
	assert.Len(t, errs.FieldErrors("name"), 1)
	assert.Len(t, errs.FieldErrors("phone"), 1)

	missing := Contact{}.Validate()
	assert.Len(t, missing, 3)
}

func TestNewLead(t *testing.T) {
	when := time.Date(2026, 5, 4, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	sel := DefaultSelection()
	sel.AdditionalFeatures = nil

	lead := NewLead(
		sel,
		Contact{Email: "jean@example.fr", Name: "Jean", Phone: "0612345678"},
		Booking{Scheduled: true, EventURI: "https://calendly.com/events/abc", ScheduledTime: &when},
		UTM{Source: "google"},
		1700, 2300,
	)

	assert.Equal(t, LeadStatusNew, lead.Status)
	assert.Equal(t, LeadSourceCalculator, lead.Source)
	assert.Nil(t, lead.Company)
	assert.NotNil(t, lead.AdditionalFeatures)
	require.NotNil(t, lead.UTMSource)
	assert.Equal(t, "google", *lead.UTMSource)
	assert.Nil(t, lead.UTMMedium)
	require.NotNil(t, lead.BookingScheduledTime)
	assert.Equal(t, time.UTC, lead.BookingScheduledTime.Location())
	assert.True(t, lead.BookingScheduledTime.Equal(when))
	assert.Equal(t, 1700, lead.EstimatedPriceMin)

	roundTrip := lead.Selection()
	assert.Equal(t, sel.ScreenCount, roundTrip.ScreenCount)
	assert.Equal(t, sel.Design, roundTrip.Design)
}

func TestQuoteForm_NormalizeAndValidate(t *testing.T) {
	form := QuoteForm{
		QuoteSelection: QuoteSelection{SelectedPlan: PlanBusiness, Discount: 140},
		ClientInfo:     ClientInfo{Company: "Acme", Sector: "tech", Email: "ceo@acme.io"},
		ProjectContext: ProjectContext{
			ProjectName:    "Acme App",
			ProblemToSolve: "Les commandes sont saisies à la main",
			ProjectType:    "mobile",
			TargetUsers:    "public",
		},
	}
	form.Normalize()

	assert.Equal(t, 100.0, form.Discount)
	assert.Equal(t, UrgencyNormal, form.Logistics.Urgency)
	assert.Equal(t, MaintenanceNone, form.Logistics.Maintenance)
	assert.Equal(t, QuoteStatusDraft, form.Status)
	assert.Empty(t, form.Validate())

	form.ProjectContext.ProblemToSolve = "court"
	form.ClientInfo.Sector = "aerospace"
	form.ExtraScreens = map[ScreenTier]int{TierSimple: -1}
	errs := form.Validate()
	assert.Len(t, errs.FieldErrors("projectContext.problemToSolve"), 1)
	assert.Len(t, errs.FieldErrors("clientInfo.sector"), 1)
	assert.Len(t, errs.FieldErrors("extraScreens.simple"), 1)
}

func TestQuote_ApplyKeepsIdentity(t *testing.T) {
	form := QuoteForm{QuoteSelection: QuoteSelection{SelectedPlan: PlanStarter}}
	form.Normalize()

	q := NewQuote(form, 2000, 0)
	id, created := q.ID, q.CreatedAt

	form.SelectedPlan = PlanPremium
	q.Apply(form, 12000, 0)

	assert.Equal(t, id, q.ID)
	assert.Equal(t, created, q.CreatedAt)
	assert.Equal(t, PlanPremium, q.SelectedPlan)
	assert.Equal(t, 12000, q.TotalPrice)
	assert.NotNil(t, q.SelectedPacks)
	assert.NotNil(t, q.ExtraScreens)
	assert.Equal(t, PlanPremium, q.Selection().SelectedPlan)
}
