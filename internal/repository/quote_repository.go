package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/levelapp/funnel/internal/database"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// QuoteRepository implements domain.QuoteRepository using PostgreSQL.
type QuoteRepository struct {
	tx *database.TxManager
}

// NewQuoteRepository creates a new QuoteRepository.
func NewQuoteRepository(tx *database.TxManager) *QuoteRepository {
	return &QuoteRepository{tx: tx}
}

// Create inserts a new quote.
func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	args, err := quoteArgs(quote)
	if err != nil {
		return apperrors.InternalError("failed to encode quote", err)
	}

	query := fmt.Sprintf("INSERT INTO quotes (%s) VALUES (%s)",
		QuoteColumns.InsertColumns(), QuoteColumns.Placeholders())
	if _, err := r.tx.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		return writeError("QuoteRepository.Create", "quote", "quote already exists", err)
	}
	return nil
}

// Update replaces an existing quote. The creation time is never rewritten.
func (r *QuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	args, err := quoteArgs(quote)
	if err != nil {
		return apperrors.InternalError("failed to encode quote", err)
	}

	cols := QuoteColumns.Without("created_at")
	query := fmt.Sprintf("UPDATE quotes SET %s WHERE id = $1", cols.UpdateSet())

	createdAt := QuoteColumns.Count() - 2
	args = append(args[:createdAt], args[createdAt+1:]...)

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return apperrors.DatabaseError("QuoteRepository.Update", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("quote")
	}
	return nil
}

// GetByID retrieves a quote by ID.
func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + QuoteColumns.Select() + " FROM quotes WHERE id = $1"
	quote, err := scanQuote(r.tx.GetQuerier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, readError("QuoteRepository.GetByID", "quote", err)
	}
	return quote, nil
}

// List retrieves quotes, most recently updated first.
func (r *QuoteRepository) List(ctx context.Context, limit, offset int) ([]*domain.Quote, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	limit, offset = NormalizePagination(limit, offset)
	query := "SELECT " + QuoteColumns.Select() + `
		FROM quotes
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.tx.GetQuerier(ctx).Query(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.DatabaseError("QuoteRepository.List", err)
	}
	defer rows.Close()

	quotes := []*domain.Quote{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("QuoteRepository.List", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("QuoteRepository.List", err)
	}
	return quotes, nil
}

// quoteArgs returns the column values of q in QuoteColumns order.
func quoteArgs(q *domain.Quote) ([]any, error) {
	extraScreens, err := json.Marshal(q.ExtraScreens)
	if err != nil {
		return nil, err
	}
	packs := make([]string, len(q.SelectedPacks))
	for i, p := range q.SelectedPacks {
		packs[i] = string(p)
	}

	return []any{
		q.ID,
		q.ClientCompany,
		q.ClientContact,
		q.ClientEmail,
		q.ClientPhone,
		q.ClientSector,
		q.ProjectName,
		q.ProblemToSolve,
		q.ProjectType,
		q.TargetUsers,
		q.AdvancedFeatures,
		q.SelectedFeatures,
		q.SelectedPlan,
		packs,
		extraScreens,
		q.Discount,
		q.DesignHasBranding,
		q.DesignStyle,
		q.DesignPrimaryColor,
		q.DesignSecondaryColor,
		q.DesignDarkMode,
		q.DesignAnimations,
		q.Deadline,
		q.Urgency,
		q.Maintenance,
		q.NotesIndispensable,
		q.NotesNiceToHave,
		q.NotesInternal,
		q.TotalPrice,
		q.MonthlyMaintenance,
		q.Status,
		q.CreatedAt,
		q.UpdatedAt,
	}, nil
}

func scanQuote(row pgx.Row) (*domain.Quote, error) {
	var (
		q            domain.Quote
		packs        []string
		extraScreens []byte
	)
	err := row.Scan(
		&q.ID,
		&q.ClientCompany,
		&q.ClientContact,
		&q.ClientEmail,
		&q.ClientPhone,
		&q.ClientSector,
		&q.ProjectName,
		&q.ProblemToSolve,
		&q.ProjectType,
		&q.TargetUsers,
		&q.AdvancedFeatures,
		&q.SelectedFeatures,
		&q.SelectedPlan,
		&packs,
		&extraScreens,
		&q.Discount,
		&q.DesignHasBranding,
		&q.DesignStyle,
		&q.DesignPrimaryColor,
		&q.DesignSecondaryColor,
		&q.DesignDarkMode,
		&q.DesignAnimations,
		&q.Deadline,
		&q.Urgency,
		&q.Maintenance,
		&q.NotesIndispensable,
		&q.NotesNiceToHave,
		&q.NotesInternal,
		&q.TotalPrice,
		&q.MonthlyMaintenance,
		&q.Status,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.SelectedPacks = make([]domain.Pack, len(packs))
	for i, p := range packs {
		q.SelectedPacks[i] = domain.Pack(p)
	}
	q.ExtraScreens = map[domain.ScreenTier]int{}
	if len(extraScreens) > 0 {
		if err := json.Unmarshal(extraScreens, &q.ExtraScreens); err != nil {
			return nil, fmt.Errorf("decoding extra_screens: %w", err)
		}
	}
	return &q, nil
}
