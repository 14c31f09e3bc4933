package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContent(t *testing.T) {
	tests := []struct {
		section Section
		raw     string
		want    KnowledgeContent
	}{
		{SectionFAQ, `{"items":[{"question":"Prix ?","answer":"2000€"}]}`,
			FAQContent{Items: []FAQItem{{Question: "Prix ?", Answer: "2000€"}}}},
		{SectionCustomContext, `{"text":"Parle du MVP","instructions":"Sois bref"}`,
			CustomContextContent{Text: "Parle du MVP", Instructions: "Sois bref"}},
		{SectionProcess, `{"steps":[{"title":"Appel","description":"Découverte","duration":"30 min"}]}`,
			ProcessContent{Steps: []ProcessStep{{Title: "Appel", Description: "Découverte", Duration: "30 min"}}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.section), func(t *testing.T) {
			got, err := DecodeContent(tt.section, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.section, got.Section())
		})
	}
}

func TestDecodeContent_Errors(t *testing.T) {
	_, err := DecodeContent(SectionFAQ, []byte(`{"items":"nope"}`))
	assert.True(t, errors.Is(err, ErrInvalidContent))

	_, err = DecodeContent(SectionPricing, []byte("null"))
	assert.True(t, errors.Is(err, ErrInvalidContent))

	got, err := DecodeContent("testimonials", []byte(`{"quotes":[]}`))
	require.NoError(t, err)
	unknown, ok := got.(UnknownContent)
	require.True(t, ok)
	assert.Equal(t, Section("testimonials"), unknown.Section())
	assert.JSONEq(t, `{"quotes":[]}`, string(unknown.Raw))
}

func TestOrderedPrices_KeepsKeyOrder(t *testing.T) {
	raw := `{"plans":[],"packs":[],"urgency":[],"maintenance":[],
		"extraScreens":{"very_complex":1200,"simple":150,"complex":600,"standard":300}}`

	got, err := DecodeContent(SectionPricing, []byte(raw))
	require.NoError(t, err)

	pricing := got.(PricingContent)
	labels := make([]string, 0, len(pricing.ExtraScreens))
	for _, lp := range pricing.ExtraScreens {
		labels = append(labels, lp.Label)
	}
	assert.Equal(t, []string{"very_complex", "simple", "complex", "standard"}, labels)

	out, err := json.Marshal(pricing.ExtraScreens)
	require.NoError(t, err)
	assert.Equal(t, `{"very_complex":1200,"simple":150,"complex":600,"standard":300}`, string(out))
}

func TestKnowledgeEntry_JSONRoundTrip(t *testing.T) {
	entry := NewKnowledgeEntry("Entreprise", CompanyInfoContent{
		Name:    "Level App",
		Values:  []string{"Qualité"},
		Contact: CompanyContact{Email: "contact@levelapp.fr"},
	}, 80)

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded KnowledgeEntry
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, SectionCompanyInfo, decoded.Section)
	assert.Equal(t, entry.Content, decoded.Content)
	assert.True(t, decoded.IsActive)
	assert.Equal(t, 80, decoded.Priority)
}

func TestKnowledgeUpdate(t *testing.T) {
	assert.True(t, KnowledgeUpdate{}.IsEmpty())

	entry := NewKnowledgeEntry("FAQ", FAQContent{}, 90)
	inactive := false
	title := "Questions"
	KnowledgeUpdate{Title: &title, IsActive: &inactive}.Apply(entry)

	assert.Equal(t, "Questions", entry.Title)
	assert.False(t, entry.IsActive)
	assert.Equal(t, 90, entry.Priority)
}

func TestSection_Valid(t *testing.T) {
	for _, s := range Sections {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Section("documents").Valid())
	assert.Len(t, SectionCatalog(), len(Sections))
}
