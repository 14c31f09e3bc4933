package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Section is the knowledge-base category of an entry. There is at most one
// entry per section.
type Section string

const (
	SectionPricing       Section = "pricing"
	SectionFAQ           Section = "faq"
	SectionCompanyInfo   Section = "company_info"
	SectionCaseStudies   Section = "case_studies"
	SectionProcess       Section = "process"
	SectionCustomContext Section = "custom_context"
)

// Sections lists every known section.
var Sections = []Section{
	SectionPricing, SectionFAQ, SectionCompanyInfo,
	SectionCaseStudies, SectionProcess, SectionCustomContext,
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// SectionInfo is the admin display metadata of a section.
type SectionInfo struct {
	Section     Section `json:"section"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// SectionCatalog returns display metadata for every section.
func SectionCatalog() []SectionInfo {
	return []SectionInfo{
		{SectionPricing, "Tarification", "Plans, packs et options de prix"},
		{SectionFAQ, "FAQ", "Questions fréquemment posées"},
		{SectionCompanyInfo, "Entreprise", "Informations sur Level App"},
		{SectionCaseStudies, "Études de cas", "Projets réalisés et résultats"},
		{SectionProcess, "Processus", "Notre méthode de travail"},
		{SectionCustomContext, "Contexte personnalisé", "Instructions supplémentaires"},
	}
}

// ErrInvalidContent is returned when an entry's content does not match its section.
var ErrInvalidContent = errors.New("invalid knowledge content")

// KnowledgeContent is the section-specific payload of an entry. The set of
// implementations is closed; each one reports its own section.
type KnowledgeContent interface {
	Section() Section
	knowledgeContent()
}

// PricingContent lists plans, packs and pricing options.
type PricingContent struct {
	Plans        []PricingPlan       `json:"plans"`
	Packs        []PricingPack       `json:"packs"`
	Urgency      []UrgencyOption     `json:"urgency"`
	Maintenance  []MaintenanceOption `json:"maintenance"`
	ExtraScreens OrderedPrices       `json:"extraScreens,omitempty"`
}

// PricingPlan describes one plan for the prompt.
type PricingPlan struct {
	Name        string   `json:"name"`
	BasePrice   int      `json:"basePrice"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// PricingPack describes one add-on pack for the prompt.
type PricingPack struct {
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
}

// UrgencyOption describes one urgency tier for the prompt.
type UrgencyOption struct {
	Label       string  `json:"label"`
	Multiplier  float64 `json:"multiplier"`
	Description string  `json:"description"`
}

// MaintenanceOption describes one maintenance tier for the prompt.
type MaintenanceOption struct {
	Label        string `json:"label"`
	MonthlyPrice int    `json:"monthlyPrice"`
	Description  string `json:"description"`
}

// FAQContent is a list of questions and answers.
type FAQContent struct {
	Items []FAQItem `json:"items"`
}

// FAQItem is one question and its answer.
type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CompanyInfoContent describes the agency.
type CompanyInfoContent struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Mission     string         `json:"mission"`
	Values      []string       `json:"values"`
	Contact     CompanyContact `json:"contact"`
}

// CompanyContact holds the agency's contact channels.
type CompanyContact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// CaseStudyContent lists delivered projects.
type CaseStudyContent struct {
	Projects []CaseStudy `json:"projects"`
}

// CaseStudy is one delivered project.
type CaseStudy struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	ShortDesc string   `json:"shortDesc"`
	Problem   string   `json:"problem"`
	Solution  string   `json:"solution"`
	Results   []string `json:"results"`
	Tags      []string `json:"tags"`
}

// ProcessContent lists the steps of the delivery process.
type ProcessContent struct {
	Steps []ProcessStep `json:"steps"`
}

// ProcessStep is one step of the delivery process.
type ProcessStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration,omitempty"`
}

// CustomContextContent is free text with optional instructions.
type CustomContextContent struct {
	Text         string `json:"text"`
	Instructions string `json:"instructions,omitempty"`
}

// UnknownContent holds the raw payload of a section this build does not know.
type UnknownContent struct {
	Tag Section
	Raw json.RawMessage
}

func (PricingContent) Section() Section       { return SectionPricing }
func (FAQContent) Section() Section           { return SectionFAQ }
func (CompanyInfoContent) Section() Section   { return SectionCompanyInfo }
func (CaseStudyContent) Section() Section     { return SectionCaseStudies }
func (ProcessContent) Section() Section       { return SectionProcess }
func (CustomContextContent) Section() Section { return SectionCustomContext }
func (c UnknownContent) Section() Section     { return c.Tag }

func (PricingContent) knowledgeContent()       {}
func (FAQContent) knowledgeContent()           {}
func (CompanyInfoContent) knowledgeContent()   {}
func (CaseStudyContent) knowledgeContent()     {}
func (ProcessContent) knowledgeContent()       {}
func (CustomContextContent) knowledgeContent() {}
func (UnknownContent) knowledgeContent()       {}

// MarshalJSON writes the raw payload unchanged.
func (c UnknownContent) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

// DecodeContent decodes raw JSON into the content type of section.
// Sections this build does not know decode to UnknownContent.
func DecodeContent(section Section, raw []byte) (KnowledgeContent, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("%w: %s content is empty", ErrInvalidContent, section)
	}

	var (
		content KnowledgeContent
		err     error
	)
	switch section {
	case SectionPricing:
		var c PricingContent
		err = json.Unmarshal(raw, &c)
		content = c
	case SectionFAQ:
		var c FAQContent
		err = json.Unmarshal(raw, &c)
		content = c
	case SectionCompanyInfo:
		var c CompanyInfoContent
		err = json.Unmarshal(raw, &c)
		content = c
	case SectionCaseStudies:
		var c CaseStudyContent
		err = json.Unmarshal(raw, &c)
		content = c
	case SectionProcess:
		var c ProcessContent
		err = json.Unmarshal(raw, &c)
		content = c
	case SectionCustomContext:
		var c CustomContextContent
		err = json.Unmarshal(raw, &c)
		content = c
	default:
		return UnknownContent{Tag: section, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, section, err)
	}
	return content, nil
}

// KnowledgeEntry is one knowledge-base section.
type KnowledgeEntry struct {
	ID        uuid.UUID        `json:"id"`
	Section   Section          `json:"section"`
	Title     string           `json:"title"`
	Content   KnowledgeContent `json:"content"`
	IsActive  bool             `json:"is_active"`
	Priority  int              `json:"priority"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewKnowledgeEntry creates an active entry for content's section.
func NewKnowledgeEntry(title string, content KnowledgeContent, priority int) *KnowledgeEntry {
	now := time.Now().UTC()
	return &KnowledgeEntry{
		ID:        uuid.New(),
		Section:   content.Section(),
		Title:     title,
		Content:   content,
		IsActive:  true,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RawContent returns the entry's content encoded as JSON.
func (e *KnowledgeEntry) RawContent() (json.RawMessage, error) {
	if e.Content == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(e.Content)
}

type knowledgeEntryJSON struct {
	ID        uuid.UUID       `json:"id"`
	Section   Section         `json:"section"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	IsActive  bool            `json:"is_active"`
	Priority  int             `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UnmarshalJSON decodes content according to the section tag.
func (e *KnowledgeEntry) UnmarshalJSON(data []byte) error {
	var row knowledgeEntryJSON
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	content, err := DecodeContent(row.Section, row.Content)
	if err != nil {
		return err
	}
	*e = KnowledgeEntry{
		ID:        row.ID,
		Section:   row.Section,
		Title:     row.Title,
		Content:   content,
		IsActive:  row.IsActive,
		Priority:  row.Priority,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	return nil
}

// KnowledgeUpdate is a partial update of an entry. Nil fields are left unchanged.
type KnowledgeUpdate struct {
	Title    *string
	Content  KnowledgeContent
	IsActive *bool
	Priority *int
}

// IsEmpty reports whether the update changes nothing.
func (u KnowledgeUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.IsActive == nil && u.Priority == nil
}

// Apply writes the non-nil fields onto e.
func (u KnowledgeUpdate) Apply(e *KnowledgeEntry) {
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Content != nil {
		e.Content = u.Content
	}
	if u.IsActive != nil {
		e.IsActive = *u.IsActive
	}
	if u.Priority != nil {
		e.Priority = *u.Priority
	}
	e.UpdatedAt = time.Now().UTC()
}

// Version authors.
const (
	VersionAuthorAdmin    = "admin"
	VersionAuthorRestored = "admin (restored)"
)

// KnowledgeVersion is an immutable snapshot of an entry's content.
type KnowledgeVersion struct {
	ID            uuid.UUID       `json:"id"`
	KnowledgeID   uuid.UUID       `json:"knowledge_id"`
	VersionNumber int             `json:"version_number"`
	Content       json.RawMessage `json:"content"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ConfigKeySystemPrompt is the config key of the chat persona.
const ConfigKeySystemPrompt = "system_prompt"

// SystemPromptConfig is the persona prepended to the compiled knowledge.
type SystemPromptConfig struct {
	Prompt      string `json:"prompt"`
	Personality string `json:"personality,omitempty"`
	Language    string `json:"language,omitempty"`
	Tone        string `json:"tone,omitempty"`
}

// OrderedPrices is a JSON object of label to price that keeps key order.
type OrderedPrices []LabeledPrice

// LabeledPrice is one entry of an OrderedPrices object.
type LabeledPrice struct {
	Label string
	Price int
}

// MarshalJSON writes the entries as an object in their stored order.
func (p OrderedPrices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lp := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(lp.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", lp.Price)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the document's key order.
func (p *OrderedPrices) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("extraScreens: expected object")
	}

	var out OrderedPrices
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var price float64
		if err := dec.Decode(&price); err != nil {
			return fmt.Errorf("extraScreens.%s: %w", key, err)
		}
		out = append(out, LabeledPrice{Label: key, Price: int(price)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
