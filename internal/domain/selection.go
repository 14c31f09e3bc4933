// Package domain contains the core business entities and interfaces.
package domain

import (
	"time"

	"github.com/levelapp/funnel/internal/validation"
)

// Screen count bounds accepted by the calculator wizard.
const (
	MinScreenCount = 3
	MaxScreenCount = 30
)

// AppType is the target platform of a calculator selection.
type AppType string

const (
	AppTypeMobile AppType = "mobile"
	AppTypeWeb    AppType = "web"
	AppTypeBoth   AppType = "both"
)

// AuthLevel is the authentication requirement of a calculator selection.
type AuthLevel string

const (
	AuthNone      AuthLevel = "none"
	AuthEmail     AuthLevel = "email"
	AuthSocial    AuthLevel = "social"
	AuthMultiUser AuthLevel = "multi_user"
)

// PaymentNeeds is the payment requirement of a calculator selection.
type PaymentNeeds string

const (
	PaymentNone         PaymentNeeds = "none"
	PaymentOneTime      PaymentNeeds = "onetime"
	PaymentSubscription PaymentNeeds = "subscription"
	PaymentBoth         PaymentNeeds = "both"
)

// Feature identifies an additional feature priced on its own line.
type Feature string

const (
	FeatureGeolocation    Feature = "geolocation"
	FeatureChat           Feature = "chat"
	FeatureNotifications  Feature = "notifications"
	FeatureAdminDashboard Feature = "admin_dashboard"
	FeatureAnalytics      Feature = "analytics"
	FeatureFileUpload     Feature = "file_upload"
	FeatureCalendar       Feature = "calendar"
	FeatureSearch         Feature = "search"
)

// DesignStyle is the visual design tier.
type DesignStyle string

const (
	DesignMinimal DesignStyle = "minimal"
	DesignModern  DesignStyle = "modern"
	DesignPremium DesignStyle = "premium"
	DesignCustom  DesignStyle = "custom"
)

// Ordered identifier lists, used for validation and catalog rendering.
var (
	AppTypes     = []AppType{AppTypeMobile, AppTypeWeb, AppTypeBoth}
	AuthLevels   = []AuthLevel{AuthNone, AuthEmail, AuthSocial, AuthMultiUser}
	PaymentKinds = []PaymentNeeds{PaymentNone, PaymentOneTime, PaymentSubscription, PaymentBoth}
	Features     = []Feature{
		FeatureGeolocation, FeatureChat, FeatureNotifications, FeatureAdminDashboard,
		FeatureAnalytics, FeatureFileUpload, FeatureCalendar, FeatureSearch,
	}
	DesignStyles = []DesignStyle{DesignMinimal, DesignModern, DesignPremium, DesignCustom}
)

// Design holds the design answers of the wizard.
type Design struct {
	HasBranding bool        `json:"hasBranding"`
	Style       DesignStyle `json:"style"`
}

// Selection is one visitor's calculator answers. The price is never stored
// on it; pricing.Estimate derives it from these fields on every read.
type Selection struct {
	ScreenCount        int          `json:"screenCount"`
	AppType            AppType      `json:"appType"`
	AuthLevel          AuthLevel    `json:"authLevel"`
	PaymentNeeds       PaymentNeeds `json:"paymentNeeds"`
	AdditionalFeatures []Feature    `json:"additionalFeatures"`
	Design             Design       `json:"design"`
}

// DefaultSelection returns the wizard's initial answers.
func DefaultSelection() Selection {
	return Selection{
		ScreenCount:        5,
		AppType:            AppTypeMobile,
		AuthLevel:          AuthNone,
		PaymentNeeds:       PaymentNone,
		AdditionalFeatures: []Feature{},
		Design:             Design{Style: DesignMinimal},
	}
}

// HasFeature reports whether f is among the selected additional features.
func (s Selection) HasFeature(f Feature) bool {
	for _, sel := range s.AdditionalFeatures {
		if sel == f {
			return true
		}
	}
	return false
}

// Validate checks the selection against the closed option sets.
func (s Selection) Validate() validation.ValidationErrors {
	v := validation.New()

	v.Range("screenCount", s.ScreenCount, MinScreenCount, MaxScreenCount)
	requiredOneOf(v, "appType", string(s.AppType), stringsOf(AppTypes))
	requiredOneOf(v, "authLevel", string(s.AuthLevel), stringsOf(AuthLevels))
	requiredOneOf(v, "paymentNeeds", string(s.PaymentNeeds), stringsOf(PaymentKinds))
	requiredOneOf(v, "design.style", string(s.Design.Style), stringsOf(DesignStyles))

	allowed := stringsOf(Features)
	seen := make(map[Feature]bool, len(s.AdditionalFeatures))
	for _, f := range s.AdditionalFeatures {
		if seen[f] {
			v.AddError("additionalFeatures", "duplicate feature: "+string(f), validation.CodeInvalidValue)
			continue
		}
		seen[f] = true
		v.OneOf("additionalFeatures", string(f), allowed)
	}

	return v.Errors()
}

// Contact is the visitor's contact step.
type Contact struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Company string `json:"company,omitempty"`
}

// Validate applies the contact step rules: valid email, 2 to 100 character
// name, French phone number.
func (c Contact) Validate() validation.ValidationErrors {
	v := validation.New()

	if v.Required("email", c.Email) {
		v.Email("email", c.Email)
	}
	if v.Required("name", c.Name) {
		v.MinLength("name", c.Name, 2)
		v.MaxLength("name", c.Name, 100)
		v.NoScriptTags("name", c.Name)
	}
	if v.Required("phone", c.Phone) {
		v.FrenchPhone("phone", c.Phone)
	}
	v.MaxLength("company", c.Company, 200)

	return v.Errors()
}

// Booking is the optional discovery-call booking step.
type Booking struct {
	Scheduled     bool       `json:"scheduled"`
	EventURI      string     `json:"eventUri,omitempty"`
	ScheduledTime *time.Time `json:"scheduledTime,omitempty"`
}

func requiredOneOf(v *validation.Validator, field, value string, allowed []string) {
	if v.Required(field, value) {
		v.OneOf(field, value, allowed)
	}
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
