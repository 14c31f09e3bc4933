package supabase

import (
	"context"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/repository"
)

// QuoteRepository implements domain.QuoteRepository on Supabase.
type QuoteRepository struct {
	c *Client
}

// NewQuoteRepository creates a new QuoteRepository.
func NewQuoteRepository(c *Client) *QuoteRepository {
	return &QuoteRepository{c: c}
}

// Create inserts a new quote.
func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	if err := ctx.Err(); err != nil {
		return readError("QuoteRepository.Create", err)
	}

	var inserted []domain.Quote
	_, err := r.c.client.From(tableQuotes).
		Insert(quote, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return writeError("QuoteRepository.Create", "quote", "quote already exists", err)
	}
	return nil
}

// Update replaces an existing quote. The creation time is never rewritten.
func (r *QuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	if err := ctx.Err(); err != nil {
		return readError("QuoteRepository.Update", err)
	}

	patch := quotePatch(quote)

	var updated []domain.Quote
	_, err := r.c.client.From(tableQuotes).
		Update(patch, "representation", "").
		Eq("id", quote.ID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return readError("QuoteRepository.Update", err)
	}
	if len(updated) == 0 {
		return apperrors.NotFound("quote")
	}
	return nil
}

// quotePatchRow encodes a quote without its id and created_at columns. The
// outer nil fields shadow the embedded ones and are omitted.
type quotePatchRow struct {
	domain.Quote
	ID        *struct{} `json:"id,omitempty"`
	CreatedAt *struct{} `json:"created_at,omitempty"`
}

func quotePatch(q *domain.Quote) quotePatchRow {
	return quotePatchRow{Quote: *q}
}

// GetByID retrieves a quote by ID.
func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("QuoteRepository.GetByID", err)
	}

	var quotes []*domain.Quote
	_, err := r.c.client.From(tableQuotes).
		Select("*", "", false).
		Eq("id", id.String()).
		ExecuteTo(&quotes)
	if err != nil {
		return nil, readError("QuoteRepository.GetByID", err)
	}
	if len(quotes) == 0 {
		return nil, apperrors.NotFound("quote")
	}
	return quotes[0], nil
}

// List retrieves quotes, most recently updated first.
func (r *QuoteRepository) List(ctx context.Context, limit, offset int) ([]*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("QuoteRepository.List", err)
	}

	limit, offset = repository.NormalizePagination(limit, offset)
	var quotes []*domain.Quote
	_, err := r.c.client.From(tableQuotes).
		Select("*", "", false).
		Order("updated_at", descending).
		Range(offset, offset+limit-1, "").
		ExecuteTo(&quotes)
	if err != nil {
		return nil, readError("QuoteRepository.List", err)
	}
	if quotes == nil {
		quotes = []*domain.Quote{}
	}
	return quotes, nil
}

var _ domain.QuoteRepository = (*QuoteRepository)(nil)
