package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
	"github.com/levelapp/funnel/internal/pricing"
	"github.com/levelapp/funnel/internal/validation"
)

// Estimate is the calculator result shown to a visitor.
type Estimate struct {
	Min           int            `json:"min"`
	Max           int            `json:"max"`
	Breakdown     []pricing.Line `json:"breakdown"`
	PriceRange    string         `json:"priceRange"`
	DeliveryWeeks int            `json:"deliveryWeeks"`
	DeliveryText  string         `json:"deliveryText"`
}

// LeadSubmission is a completed calculator wizard.
type LeadSubmission struct {
	Selection domain.Selection `json:"selection"`
	Contact   domain.Contact   `json:"contact"`
	Booking   domain.Booking   `json:"booking"`
	UTM       domain.UTM       `json:"utm"`
}

// LeadService prices calculator selections and records leads.
type LeadService struct {
	leads   domain.LeadRepository
	metrics *metrics.Metrics
	events  *metrics.BusinessEventLogger
	logger  *zap.Logger
}

// NewLeadService creates a new LeadService. leads may be nil when no store is
// configured; estimates still work.
func NewLeadService(leads domain.LeadRepository, m *metrics.Metrics, logger *zap.Logger) *LeadService {
	return &LeadService{
		leads:   leads,
		metrics: m,
		events:  metrics.NewBusinessEventLogger(logger),
		logger:  logger,
	}
}

// Estimate validates and prices a selection.
func (s *LeadService) Estimate(sel domain.Selection) (*Estimate, error) {
	if errs := sel.Validate(); errs.HasErrors() {
		return nil, apperrors.ValidationFailed("invalid selection", errs)
	}

	est := estimate(sel)
	s.metrics.RecordEstimate()
	return est, nil
}

func estimate(sel domain.Selection) *Estimate {
	result := pricing.Estimate(sel)
	weeks := pricing.DeliveryWeeks(sel)
	return &Estimate{
		Min:           result.Min,
		Max:           result.Max,
		Breakdown:     result.Breakdown,
		PriceRange:    pricing.PriceRangeText(result.Min, result.Max),
		DeliveryWeeks: weeks,
		DeliveryText:  pricing.DeliveryText(weeks),
	}
}

// Submit validates a completed wizard and stores it as a new lead along with
// the estimate shown to the visitor.
func (s *LeadService) Submit(ctx context.Context, sub LeadSubmission) (*domain.Lead, *Estimate, error) {
	if s.leads == nil {
		return nil, nil, apperrors.ServiceUnavailable("lead store", nil)
	}

	var errs validation.ValidationErrors
	errs = errs.Merge("selection", sub.Selection.Validate())
	errs = errs.Merge("contact", sub.Contact.Validate())
	if errs.HasErrors() {
		return nil, nil, apperrors.ValidationFailed("invalid lead", errs)
	}

	est := estimate(sub.Selection)
	lead := domain.NewLead(sub.Selection, sub.Contact, sub.Booking, sub.UTM, est.Min, est.Max)
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, nil, fmt.Errorf("failed to save lead: %w", err)
	}

	s.metrics.RecordLeadCreated(lead.Source)
	s.events.LeadCaptured(ctx, lead.ID, lead.Email, lead.Phone, lead.EstimatedPriceMin, lead.EstimatedPriceMax, sub.UTM.Source)
	return lead, est, nil
}

// UpdateBooking records the booking step on an existing lead.
func (s *LeadService) UpdateBooking(ctx context.Context, id uuid.UUID, booking domain.Booking) (*domain.Lead, error) {
	if s.leads == nil {
		return nil, apperrors.ServiceUnavailable("lead store", nil)
	}

	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lead.SetBooking(booking)
	if err := s.leads.UpdateBooking(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}

	s.events.BookingUpdated(ctx, lead.ID, lead.BookingScheduled)
	return lead, nil
}

// List returns leads for the back office, newest first.
func (s *LeadService) List(ctx context.Context, limit, offset int) ([]*domain.Lead, error) {
	if s.leads == nil {
		return nil, apperrors.ServiceUnavailable("lead store", nil)
	}
	return s.leads.List(ctx, limit, offset)
}
