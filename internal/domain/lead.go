package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus represents where a lead stands in the sales pipeline.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// LeadSourceCalculator is the source recorded for wizard submissions.
const LeadSourceCalculator = "calculator"

// UTM carries the campaign attribution of a lead.
type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

// Lead is a persisted calculator submission. The selection columns are
// canonical; EstimatedPriceMin/Max is the snapshot shown at submit time.
type Lead struct {
	ID                   uuid.UUID    `json:"id"`
	Email                string       `json:"email"`
	Name                 string       `json:"name"`
	Phone                string       `json:"phone"`
	Company              *string      `json:"company"`
	ScreenCount          int          `json:"screen_count"`
	AppType              AppType      `json:"app_type"`
	AuthLevel            AuthLevel    `json:"auth_level"`
	PaymentNeeds         PaymentNeeds `json:"payment_needs"`
	AdditionalFeatures   []Feature    `json:"additional_features"`
	DesignStyle          DesignStyle  `json:"design_style"`
	HasBranding          bool         `json:"has_branding"`
	EstimatedPriceMin    int          `json:"estimated_price_min"`
	EstimatedPriceMax    int          `json:"estimated_price_max"`
	BookingScheduled     bool         `json:"booking_scheduled"`
	BookingEventURI      *string      `json:"booking_event_uri"`
	BookingScheduledTime *time.Time   `json:"booking_scheduled_time"`
	Status               LeadStatus   `json:"status"`
	Source               string       `json:"source"`
	UTMSource            *string      `json:"utm_source"`
	UTMMedium            *string      `json:"utm_medium"`
	UTMCampaign          *string      `json:"utm_campaign"`
	CreatedAt            time.Time    `json:"created_at"`
}

// NewLead creates a lead from a wizard submission and its estimate band.
func NewLead(sel Selection, contact Contact, booking Booking, utm UTM, minPrice, maxPrice int) *Lead {
	features := sel.AdditionalFeatures
	if features == nil {
		features = []Feature{}
	}
	lead := &Lead{
		ID:                 uuid.New(),
		Email:              contact.Email,
		Name:               contact.Name,
		Phone:              contact.Phone,
		Company:            optional(contact.Company),
		ScreenCount:        sel.ScreenCount,
		AppType:            sel.AppType,
		AuthLevel:          sel.AuthLevel,
		PaymentNeeds:       sel.PaymentNeeds,
		AdditionalFeatures: features,
		DesignStyle:        sel.Design.Style,
		HasBranding:        sel.Design.HasBranding,
		EstimatedPriceMin:  minPrice,
		EstimatedPriceMax:  maxPrice,
		Status:             LeadStatusNew,
		Source:             LeadSourceCalculator,
		UTMSource:          optional(utm.Source),
		UTMMedium:          optional(utm.Medium),
		UTMCampaign:        optional(utm.Campaign),
		CreatedAt:          time.Now().UTC(),
	}
	lead.SetBooking(booking)
	return lead
}

// Selection rebuilds the calculator selection stored on the lead.
func (l *Lead) Selection() Selection {
	return Selection{
		ScreenCount:        l.ScreenCount,
		AppType:            l.AppType,
		AuthLevel:          l.AuthLevel,
		PaymentNeeds:       l.PaymentNeeds,
		AdditionalFeatures: l.AdditionalFeatures,
		Design:             Design{HasBranding: l.HasBranding, Style: l.DesignStyle},
	}
}

// SetBooking records the booking step on the lead.
func (l *Lead) SetBooking(b Booking) {
	l.BookingScheduled = b.Scheduled
	l.BookingEventURI = optional(b.EventURI)
	l.BookingScheduledTime = nil
	if b.ScheduledTime != nil {
		t := b.ScheduledTime.UTC()
		l.BookingScheduledTime = &t
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
