package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/levelapp/funnel/internal/database"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// LeadRepository implements domain.LeadRepository using PostgreSQL.
type LeadRepository struct {
	tx *database.TxManager
}

// NewLeadRepository creates a new LeadRepository.
func NewLeadRepository(tx *database.TxManager) *LeadRepository {
	return &LeadRepository{tx: tx}
}

// Create inserts a new lead.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("INSERT INTO leads (%s) VALUES (%s)",
		LeadColumns.InsertColumns(), LeadColumns.Placeholders())

	_, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		lead.ID,
		lead.Email,
		lead.Name,
		lead.Phone,
		lead.Company,
		lead.ScreenCount,
		lead.AppType,
		lead.AuthLevel,
		lead.PaymentNeeds,
		featureStrings(lead.AdditionalFeatures),
		lead.DesignStyle,
		lead.HasBranding,
		lead.EstimatedPriceMin,
		lead.EstimatedPriceMax,
		lead.BookingScheduled,
		lead.BookingEventURI,
		lead.BookingScheduledTime,
		lead.Status,
		lead.Source,
		lead.UTMSource,
		lead.UTMMedium,
		lead.UTMCampaign,
		lead.CreatedAt,
	)
	if err != nil {
		return writeError("LeadRepository.Create", "lead", "lead already exists", err)
	}
	return nil
}

// GetByID retrieves a lead by ID.
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + LeadColumns.Select() + " FROM leads WHERE id = $1"
	lead, err := scanLead(r.tx.GetQuerier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, readError("LeadRepository.GetByID", "lead", err)
	}
	return lead, nil
}

// UpdateBooking writes the booking fields of a lead.
func (r *LeadRepository) UpdateBooking(ctx context.Context, lead *domain.Lead) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		UPDATE leads SET
			booking_scheduled = $2,
			booking_event_uri = $3,
			booking_scheduled_time = $4
		WHERE id = $1`

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		lead.ID,
		lead.BookingScheduled,
		lead.BookingEventURI,
		lead.BookingScheduledTime,
	)
	if err != nil {
		return apperrors.DatabaseError("LeadRepository.UpdateBooking", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("lead")
	}
	return nil
}

// List retrieves leads, newest first.
func (r *LeadRepository) List(ctx context.Context, limit, offset int) ([]*domain.Lead, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	limit, offset = NormalizePagination(limit, offset)
	query := "SELECT " + LeadColumns.Select() + `
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.tx.GetQuerier(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.List", err)
	}
	defer rows.Close()

	leads := []*domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("LeadRepository.List", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("LeadRepository.List", err)
	}
	return leads, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var (
		lead     domain.Lead
		features []string
	)
	err := row.Scan(
		&lead.ID,
		&lead.Email,
		&lead.Name,
		&lead.Phone,
		&lead.Company,
		&lead.ScreenCount,
		&lead.AppType,
		&lead.AuthLevel,
		&lead.PaymentNeeds,
		&features,
		&lead.DesignStyle,
		&lead.HasBranding,
		&lead.EstimatedPriceMin,
		&lead.EstimatedPriceMax,
		&lead.BookingScheduled,
		&lead.BookingEventURI,
		&lead.BookingScheduledTime,
		&lead.Status,
		&lead.Source,
		&lead.UTMSource,
		&lead.UTMMedium,
		&lead.UTMCampaign,
		&lead.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	lead.AdditionalFeatures = make([]domain.Feature, len(features))
	for i, f := range features {
		lead.AdditionalFeatures[i] = domain.Feature(f)
	}
	return &lead, nil
}

func featureStrings(features []domain.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = string(f)
	}
	return out
}
