package supabase

import (
	"context"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/repository"
)

// LeadRepository implements domain.LeadRepository on Supabase. Lead JSON
// field names match the leads columns, so records travel as they are.
type LeadRepository struct {
	c *Client
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(c *Client) *LeadRepository {
	return &LeadRepository{c: c}
}

// Create inserts a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if err := ctx.Err(); err != nil {
		return readError("LeadRepository.Create", err)
	}

	var inserted []domain.Lead
	_, err := r.c.client.From(tableLeads).
		Insert(lead, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return writeError("LeadRepository.Create", "lead", "lead already exists", err)
	}
	return nil
}

// GetByID retrieves a lead by ID.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("LeadRepository.GetByID", err)
	}

	var leads []*domain.Lead
	_, err := r.c.client.From(tableLeads).
		Select("*", "", false).
		Eq("id", id.String()).
		ExecuteTo(&leads)
	if err != nil {
		return nil, readError("LeadRepository.GetByID", err)
	}
	if len(leads) == 0 {
		return nil, apperrors.NotFound("lead")
	}
	return leads[0], nil
}

// UpdateBooking writes the booking fields of a lead.
func (r *LeadRepository) UpdateBooking(ctx context.Context, lead *domain.Lead) error {
	if err := ctx.Err(); err != nil {
		return readError("LeadRepository.UpdateBooking", err)
	}

	patch := map[string]any{
		"booking_scheduled":      lead.BookingScheduled,
		"booking_event_uri":      lead.BookingEventURI,
		"booking_scheduled_time": lead.BookingScheduledTime,
	}

	var updated []domain.Lead
	_, err := r.c.client.From(tableLeads).
		Update(patch, "representation", "").
		Eq("id", lead.ID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return readError("LeadRepository.UpdateBooking", err)
	}
	if len(updated) == 0 {
		return apperrors.NotFound("lead")
	}
	return nil
}

// List retrieves leads, newest first.
func (r *LeadRepository) List(ctx context.Context, limit, offset int) ([]*domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("LeadRepository.List", err)
	}

	limit, offset = repository.NormalizePagination(limit, offset)
	var leads []*domain.Lead
	_, err := r.c.client.From(tableLeads).
		Select("*", "", false).
		Order("created_at", descending).
		Range(offset, offset+limit-1, "").
		ExecuteTo(&leads)
	if err != nil {
		return nil, readError("LeadRepository.List", err)
	}
	if leads == nil {
		leads = []*domain.Lead{}
	}
	return leads, nil
}

var _ domain.LeadRepository = (*LeadRepository)(nil)
