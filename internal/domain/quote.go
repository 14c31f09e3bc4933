package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/validation"
)

// Plan identifies a base plan of the quote builder.
type Plan string

const (
	PlanStarter  Plan = "starter"
	PlanBusiness Plan = "business"
	PlanPremium  Plan = "premium"
)

// Pack identifies an add-on pack.
type Pack string

const (
	PackAuth         Pack = "auth_pack"
	PackPayment      Pack = "payment_pack"
	PackAdmin        Pack = "admin_pack"
	PackNotification Pack = "notification_pack"
)

// ScreenTier is the complexity tier of extra screens.
type ScreenTier string

const (
	TierSimple      ScreenTier = "simple"
	TierStandard    ScreenTier = "standard"
	TierComplex     ScreenTier = "complex"
	TierVeryComplex ScreenTier = "very_complex"
)

// ScreenTiers lists tiers in the order they appear on a quote.
var ScreenTiers = []ScreenTier{TierSimple, TierStandard, TierComplex, TierVeryComplex}

// Urgency is the delivery urgency of a quote.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyFast   Urgency = "fast"
	UrgencyUrgent Urgency = "urgent"
)

// Maintenance is the recurring maintenance tier of a quote.
type Maintenance string

const (
	MaintenanceNone     Maintenance = "none"
	MaintenanceBasic    Maintenance = "basic"
	MaintenanceStandard Maintenance = "standard"
	MaintenancePremium  Maintenance = "premium"
)

// QuoteStatus is the lifecycle state of a saved quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// QuoteStatuses lists the valid quote statuses.
var QuoteStatuses = []QuoteStatus{QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusRejected}

// Logistics holds the quote's delivery options.
type Logistics struct {
	Deadline    string      `json:"deadline,omitempty"`
	Urgency     Urgency     `json:"urgency"`
	Maintenance Maintenance `json:"maintenance"`
}

// QuoteSelection is the price-relevant part of the quote builder.
type QuoteSelection struct {
	SelectedPlan  Plan               `json:"selectedPlan"`
	SelectedPacks []Pack             `json:"selectedPacks"`
	ExtraScreens  map[ScreenTier]int `json:"extraScreens"`
	Discount      float64            `json:"discount"`
	Logistics     Logistics          `json:"logistics"`
}

// ClientInfo identifies the prospect a quote is addressed to.
type ClientInfo struct {
	Company string `json:"company"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Sector  string `json:"sector"`
}

// ProjectContext describes the project being quoted.
type ProjectContext struct {
	ProjectName    string `json:"projectName"`
	ProblemToSolve string `json:"problemToSolve"`
	ProjectType    string `json:"projectType"`
	TargetUsers    string `json:"targetUsers"`
}

// QuoteDesign holds design details that do not affect price.
type QuoteDesign struct {
	HasBranding    bool   `json:"hasBranding"`
	Style          string `json:"style"`
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	DarkMode       bool   `json:"darkMode"`
	Animations     bool   `json:"animations"`
}

// QuoteNotes are the free-text notes of a quote.
type QuoteNotes struct {
	Indispensable string `json:"indispensable"`
	NiceToHave    string `json:"niceToHave"`
	Internal      string `json:"internal"`
}

// QuoteForm is the full admin quote builder state.
type QuoteForm struct {
	QuoteSelection
	ClientInfo       ClientInfo     `json:"clientInfo"`
	ProjectContext   ProjectContext `json:"projectContext"`
	AdvancedFeatures []string       `json:"advancedFeatures"`
	SelectedFeatures []string       `json:"selectedFeatures"`
	Design           QuoteDesign    `json:"design"`
	Notes            QuoteNotes     `json:"notes"`
	Status           QuoteStatus    `json:"status,omitempty"`
}

// Client sectors, project types and target user groups offered by the form.
var (
	ClientSectors = []string{"tech", "commerce", "sante", "finance", "education", "immobilier", "autre"}
	ProjectTypes  = []string{"webapp", "mobile", "landing", "dashboard", "automation"}
	TargetUsers   = []string{"solo", "employees", "b2b_b2c", "public"}
)

// Normalize clamps the discount and fills defaulted logistics.
func (f *QuoteForm) Normalize() {
	f.Discount = validation.ClampPercent(f.Discount)
	if f.Logistics.Urgency == "" {
		f.Logistics.Urgency = UrgencyNormal
	}
	if f.Logistics.Maintenance == "" {
		f.Logistics.Maintenance = MaintenanceNone
	}
	if f.Status == "" {
		f.Status = QuoteStatusDraft
	}
}

// Validate checks the fields required to save a quote.
func (f QuoteForm) Validate() validation.ValidationErrors {
	v := validation.New()

	v.Required("clientInfo.company", f.ClientInfo.Company)
	if v.Required("clientInfo.sector", f.ClientInfo.Sector) {
		v.OneOf("clientInfo.sector", f.ClientInfo.Sector, ClientSectors)
	}
	v.Email("clientInfo.email", f.ClientInfo.Email)

	v.Required("projectContext.projectName", f.ProjectContext.ProjectName)
	if v.Required("projectContext.problemToSolve", f.ProjectContext.ProblemToSolve) {
		v.MinLength("projectContext.problemToSolve", f.ProjectContext.ProblemToSolve, 10)
	}
	if v.Required("projectContext.projectType", f.ProjectContext.ProjectType) {
		v.OneOf("projectContext.projectType", f.ProjectContext.ProjectType, ProjectTypes)
	}
	if v.Required("projectContext.targetUsers", f.ProjectContext.TargetUsers) {
		v.OneOf("projectContext.targetUsers", f.ProjectContext.TargetUsers, TargetUsers)
	}

	for tier, count := range f.ExtraScreens {
		v.NonNegativeInt("extraScreens."+string(tier), count)
	}
	v.OneOf("status", string(f.Status), stringsOf(QuoteStatuses))
	v.NoScriptTags("notes.internal", f.Notes.Internal)

	return v.Errors()
}

// Quote is a saved quote record. Totals are snapshots taken at save time.
type Quote struct {
	ID                   uuid.UUID          `json:"id"`
	ClientCompany        string             `json:"client_company"`
	ClientContact        string             `json:"client_contact"`
	ClientEmail          string             `json:"client_email"`
	ClientPhone          string             `json:"client_phone"`
	ClientSector         string             `json:"client_sector"`
	ProjectName          string             `json:"project_name"`
	ProblemToSolve       string             `json:"problem_to_solve"`
	ProjectType          string             `json:"project_type"`
	TargetUsers          string             `json:"target_users"`
	AdvancedFeatures     []string           `json:"advanced_features"`
	SelectedFeatures     []string           `json:"selected_features"`
	SelectedPlan         Plan               `json:"selected_plan"`
	SelectedPacks        []Pack             `json:"selected_packs"`
	ExtraScreens         map[ScreenTier]int `json:"extra_screens"`
	Discount             float64            `json:"discount"`
	DesignHasBranding    bool               `json:"design_has_branding"`
	DesignStyle          string             `json:"design_style"`
	DesignPrimaryColor   string             `json:"design_primary_color"`
	DesignSecondaryColor string             `json:"design_secondary_color"`
	DesignDarkMode       bool               `json:"design_dark_mode"`
	DesignAnimations     bool               `json:"design_animations"`
	Deadline             string             `json:"deadline"`
	Urgency              Urgency            `json:"urgency"`
	Maintenance          Maintenance        `json:"maintenance"`
	NotesIndispensable   string             `json:"notes_indispensable"`
	NotesNiceToHave      string             `json:"notes_nice_to_have"`
	NotesInternal        string             `json:"notes_internal"`
	TotalPrice           int                `json:"total_price"`
	MonthlyMaintenance   int                `json:"monthly_maintenance"`
	Status               QuoteStatus        `json:"status"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// NewQuote builds a quote record from the form with a fresh ID.
func NewQuote(form QuoteForm, totalPrice, monthlyMaintenance int) *Quote {
	now := time.Now().UTC()
	q := &Quote{
		ID:        uuid.New(),
		CreatedAt: now,
	}
	q.Apply(form, totalPrice, monthlyMaintenance)
	q.UpdatedAt = now
	return q
}

// Apply copies the form and the computed totals onto the record.
func (q *Quote) Apply(form QuoteForm, totalPrice, monthlyMaintenance int) {
	q.ClientCompany = form.ClientInfo.Company
	q.ClientContact = form.ClientInfo.Contact
	q.ClientEmail = form.ClientInfo.Email
	q.ClientPhone = form.ClientInfo.Phone
	q.ClientSector = form.ClientInfo.Sector
	q.ProjectName = form.ProjectContext.ProjectName
	q.ProblemToSolve = form.ProjectContext.ProblemToSolve
	q.ProjectType = form.ProjectContext.ProjectType
	q.TargetUsers = form.ProjectContext.TargetUsers
	q.AdvancedFeatures = nonNilStrings(form.AdvancedFeatures)
	q.SelectedFeatures = nonNilStrings(form.SelectedFeatures)
	q.SelectedPlan = form.SelectedPlan
	q.SelectedPacks = form.SelectedPacks
	if q.SelectedPacks == nil {
		q.SelectedPacks = []Pack{}
	}
	q.ExtraScreens = form.ExtraScreens
	if q.ExtraScreens == nil {
		q.ExtraScreens = map[ScreenTier]int{}
	}
	q.Discount = form.Discount
	q.DesignHasBranding = form.Design.HasBranding
	q.DesignStyle = form.Design.Style
	q.DesignPrimaryColor = form.Design.PrimaryColor
	q.DesignSecondaryColor = form.Design.SecondaryColor
	q.DesignDarkMode = form.Design.DarkMode
	q.DesignAnimations = form.Design.Animations
	q.Deadline = form.Logistics.Deadline
	q.Urgency = form.Logistics.Urgency
	q.Maintenance = form.Logistics.Maintenance
	q.NotesIndispensable = form.Notes.Indispensable
	q.NotesNiceToHave = form.Notes.NiceToHave
	q.NotesInternal = form.Notes.Internal
	q.TotalPrice = totalPrice
	q.MonthlyMaintenance = monthlyMaintenance
	q.Status = form.Status
	q.UpdatedAt = time.Now().UTC()
}

// Selection returns the price-relevant fields of the saved record.
func (q *Quote) Selection() QuoteSelection {
	return QuoteSelection{
		SelectedPlan:  q.SelectedPlan,
		SelectedPacks: q.SelectedPacks,
		ExtraScreens:  q.ExtraScreens,
		Discount:      q.Discount,
		Logistics: Logistics{
			Deadline:    q.Deadline,
			Urgency:     q.Urgency,
			Maintenance: q.Maintenance,
		},
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
