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
)

// QuoteService prices and stores admin quotes. Totals are recomputed from the
// selection on every save; client-sent totals are never trusted.
type QuoteService struct {
	quotes  domain.QuoteRepository
	metrics *metrics.Metrics
	events  *metrics.BusinessEventLogger
	logger  *zap.Logger
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(quotes domain.QuoteRepository, m *metrics.Metrics, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		quotes:  quotes,
		metrics: m,
		events:  metrics.NewBusinessEventLogger(logger),
		logger:  logger,
	}
}

// Price computes the breakdown of a quote selection. The discount is clamped
// to 0-100 first.
func (s *QuoteService) Price(sel domain.QuoteSelection) pricing.QuoteResult {
	form := domain.QuoteForm{QuoteSelection: sel}
	form.Normalize()
	return pricing.QuotePrice(form.QuoteSelection)
}

// Create validates the form and stores a new quote.
func (s *QuoteService) Create(ctx context.Context, form domain.QuoteForm) (*domain.Quote, error) {
	if s.quotes == nil {
		return nil, apperrors.ServiceUnavailable("quote store", nil)
	}

	form.Normalize()
	if errs := form.Validate(); errs.HasErrors() {
		return nil, apperrors.ValidationFailed("invalid quote", errs)
	}

	price := pricing.QuotePrice(form.QuoteSelection)
	quote := domain.NewQuote(form, price.Total, price.MonthlyMaintenance)
	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to save quote: %w", err)
	}

	s.metrics.RecordQuoteSaved(true)
	s.events.QuoteSaved(ctx, quote.ID, quote.ClientCompany, quote.TotalPrice, true)
	return quote, nil
}

// Update replaces the form of an existing quote and reprices it.
func (s *QuoteService) Update(ctx context.Context, id uuid.UUID, form domain.QuoteForm) (*domain.Quote, error) {
	if s.quotes == nil {
		return nil, apperrors.ServiceUnavailable("quote store", nil)
	}

	form.Normalize()
	if errs := form.Validate(); errs.HasErrors() {
		return nil, apperrors.ValidationFailed("invalid quote", errs)
	}

	quote, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	price := pricing.QuotePrice(form.QuoteSelection)
	quote.Apply(form, price.Total, price.MonthlyMaintenance)
	if err := s.quotes.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}

	s.metrics.RecordQuoteSaved(false)
	s.events.QuoteSaved(ctx, quote.ID, quote.ClientCompany, quote.TotalPrice, false)
	return quote, nil
}

// Get retrieves a quote by ID.
func (s *QuoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	if s.quotes == nil {
		return nil, apperrors.ServiceUnavailable("quote store", nil)
	}
	return s.quotes.GetByID(ctx, id)
}

// List returns quotes, most recently updated first.
func (s *QuoteService) List(ctx context.Context, limit, offset int) ([]*domain.Quote, error) {
	if s.quotes == nil {
		return nil, apperrors.ServiceUnavailable("quote store", nil)
	}
	return s.quotes.List(ctx, limit, offset)
}
