package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// appendVersionAttempts bounds the retries of AppendVersion when a
// concurrent writer takes the same version number.
const appendVersionAttempts = 3

type knowledgeRow struct {
	ID        uuid.UUID       `json:"id"`
	Section   domain.Section  `json:"section"`
	Title     string          `json:"title"`
	Content   json.RawMessage `json:"content"`
	IsActive  bool            `json:"is_active"`
	Priority  int             `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toKnowledgeRow(e *domain.KnowledgeEntry) (knowledgeRow, error) {
	content, err := e.RawContent()
	if err != nil {
		return knowledgeRow{}, err
	}
	return knowledgeRow{
		ID:        e.ID,
		Section:   e.Section,
		Title:     e.Title,
		Content:   content,
		IsActive:  e.IsActive,
		Priority:  e.Priority,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// entry decodes the row. Content that no longer matches its section is kept
// raw so one bad row cannot hide the others.
func (r knowledgeRow) entry() *domain.KnowledgeEntry {
	content, err := domain.DecodeContent(r.Section, r.Content)
	if err != nil {
		content = domain.UnknownContent{Tag: r.Section, Raw: r.Content}
	}
	return &domain.KnowledgeEntry{
		ID:        r.ID,
		Section:   r.Section,
		Title:     r.Title,
		Content:   content,
		IsActive:  r.IsActive,
		Priority:  r.Priority,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func entries(rows []knowledgeRow) []*domain.KnowledgeEntry {
	out := make([]*domain.KnowledgeEntry, len(rows))
	for i, row := range rows {
		out[i] = row.entry()
	}
	return out
}

type configRow struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// KnowledgeRepository implements domain.KnowledgeRepository on Supabase.
type KnowledgeRepository struct {
	c *Client
}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository(c *Client) *KnowledgeRepository {
	return &KnowledgeRepository{c: c}
}

var (
	descending = &postgrest.OrderOpts{Ascending: false}
	ascending  = &postgrest.OrderOpts{Ascending: true}
)

// ListActive returns active entries ordered by priority, highest first.
func (r *KnowledgeRepository) ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("KnowledgeRepository.ListActive", err)
	}

	var rows []knowledgeRow
	_, err := r.c.client.From(tableKnowledge).
		Select("*", "", false).
		Eq("is_active", "true").
		Order("priority", descending).
		Order("section", ascending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError("KnowledgeRepository.ListActive", err)
	}
	return entries(rows), nil
}

// List returns every entry ordered by priority, highest first.
func (r *KnowledgeRepository) List(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("KnowledgeRepository.List", err)
	}

	var rows []knowledgeRow
	_, err := r.c.client.From(tableKnowledge).
		Select("*", "", false).
		Order("priority", descending).
		Order("section", ascending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError("KnowledgeRepository.List", err)
	}
	return entries(rows), nil
}

// GetBySection retrieves the entry of a section.
func (r *KnowledgeRepository) GetBySection(ctx context.Context, section domain.Section) (*domain.KnowledgeEntry, error) {
	return r.getOne(ctx, "KnowledgeRepository.GetBySection", "section", string(section))
}

// GetByID retrieves an entry by ID.
func (r *KnowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeEntry, error) {
	return r.getOne(ctx, "KnowledgeRepository.GetByID", "id", id.String())
}

func (r *KnowledgeRepository) getOne(ctx context.Context, op, column, value string) (*domain.KnowledgeEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(op, err)
	}

	var rows []knowledgeRow
	_, err := r.c.client.From(tableKnowledge).
		Select("*", "", false).
		Eq(column, value).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError(op, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("knowledge entry")
	}
	return rows[0].entry(), nil
}

// Create inserts a new entry. A second entry for the same section is a conflict.
func (r *KnowledgeRepository) Create(ctx context.Context, entry *domain.KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return readError("KnowledgeRepository.Create", err)
	}

	row, err := toKnowledgeRow(entry)
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Create", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	var inserted []knowledgeRow
	_, err = r.c.client.From(tableKnowledge).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&inserted)
	if err != nil {
		return writeError("KnowledgeRepository.Create", "knowledge entry",
			fmt.Sprintf("an entry already exists for section %s", entry.Section), err)
	}
	return nil
}

// Upsert inserts or replaces the entry of entry.Section. On replace the
// existing ID and creation time are kept and copied back onto entry.
func (r *KnowledgeRepository) Upsert(ctx context.Context, entry *domain.KnowledgeEntry) error {
	existing, err := r.GetBySection(ctx, entry.Section)
	switch {
	case err == nil:
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	case !apperrors.IsNotFound(err):
		return err
	}

	row, err := toKnowledgeRow(entry)
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Upsert", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	var upserted []knowledgeRow
	_, err = r.c.client.From(tableKnowledge).
		Upsert(row, "section", "representation", "").
		ExecuteTo(&upserted)
	if err != nil {
		return readError("KnowledgeRepository.Upsert", err)
	}
	if len(upserted) > 0 {
		entry.ID = upserted[0].ID
		entry.CreatedAt = upserted[0].CreatedAt
	}
	return nil
}

// Update writes every mutable field of an existing entry.
func (r *KnowledgeRepository) Update(ctx context.Context, entry *domain.KnowledgeEntry) error {
	if err := ctx.Err(); err != nil {
		return readError("KnowledgeRepository.Update", err)
	}

	content, err := entry.RawContent()
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Update", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	patch := map[string]any{
		"title":      entry.Title,
		"content":    content,
		"is_active":  entry.IsActive,
		"priority":   entry.Priority,
		"updated_at": entry.UpdatedAt,
	}

	var updated []knowledgeRow
	_, err = r.c.client.From(tableKnowledge).
		Update(patch, "representation", "").
		Eq("id", entry.ID.String()).
		ExecuteTo(&updated)
	if err != nil {
		return readError("KnowledgeRepository.Update", err)
	}
	if len(updated) == 0 {
		return apperrors.NotFound("knowledge entry")
	}
	return nil
}

// DeleteBySection removes the entry of a section. Its versions go with it
// through the foreign key cascade.
func (r *KnowledgeRepository) DeleteBySection(ctx context.Context, section domain.Section) error {
	if err := ctx.Err(); err != nil {
		return readError("KnowledgeRepository.DeleteBySection", err)
	}

	var deleted []knowledgeRow
	_, err := r.c.client.From(tableKnowledge).
		Delete("representation", "").
		Eq("section", string(section)).
		ExecuteTo(&deleted)
	if err != nil {
		return readError("KnowledgeRepository.DeleteBySection", err)
	}
	if len(deleted) == 0 {
		return apperrors.NotFound("knowledge entry")
	}
	return nil
}

// AppendVersion stores a snapshot under the next version number. A writer
// that loses the race on the unique (knowledge_id, version_number) pair
// reads the maximum again and retries.
func (r *KnowledgeRepository) AppendVersion(ctx context.Context, knowledgeID uuid.UUID, content json.RawMessage, createdBy string) (*domain.KnowledgeVersion, error) {
	const op = "KnowledgeRepository.AppendVersion"

	var lastErr error
	for attempt := 0; attempt < appendVersionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, readError(op, err)
		}

		var latest []domain.KnowledgeVersion
		_, err := r.c.client.From(tableVersions).
			Select("version_number", "", false).
			Eq("knowledge_id", knowledgeID.String()).
			Order("version_number", descending).
			Limit(1, "").
			ExecuteTo(&latest)
		if err != nil {
			return nil, readError(op, err)
		}

		version := &domain.KnowledgeVersion{
			ID:            uuid.New(),
			KnowledgeID:   knowledgeID,
			VersionNumber: 1,
			Content:       content,
			CreatedBy:     createdBy,
			CreatedAt:     r.c.now().UTC(),
		}
		if len(latest) > 0 {
			version.VersionNumber = latest[0].VersionNumber + 1
		}

		var inserted []domain.KnowledgeVersion
		_, err = r.c.client.From(tableVersions).
			Insert(version, false, "", "representation", "").
			ExecuteTo(&inserted)
		if err == nil {
			return version, nil
		}

		lastErr = writeError(op, "knowledge entry", "version number already taken", err)
		if !apperrors.IsConflict(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// ListVersions returns an entry's versions, newest first.
func (r *KnowledgeRepository) ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("KnowledgeRepository.ListVersions", err)
	}

	var rows []*domain.KnowledgeVersion
	_, err := r.c.client.From(tableVersions).
		Select("*", "", false).
		Eq("knowledge_id", knowledgeID.String()).
		Order("version_number", descending).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError("KnowledgeRepository.ListVersions", err)
	}
	if rows == nil {
		rows = []*domain.KnowledgeVersion{}
	}
	return rows, nil
}

// GetVersion retrieves a version by ID.
func (r *KnowledgeRepository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.KnowledgeVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("KnowledgeRepository.GetVersion", err)
	}

	var rows []*domain.KnowledgeVersion
	_, err := r.c.client.From(tableVersions).
		Select("*", "", false).
		Eq("id", id.String()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError("KnowledgeRepository.GetVersion", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("knowledge version")
	}
	return rows[0], nil
}

// GetConfig returns the raw value stored under key.
func (r *KnowledgeRepository) GetConfig(ctx context.Context, key string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError("KnowledgeRepository.GetConfig", err)
	}

	var rows []configRow
	_, err := r.c.client.From(tableChatConfig).
		Select("*", "", false).
		Eq("key", key).
		ExecuteTo(&rows)
	if err != nil {
		return nil, readError("KnowledgeRepository.GetConfig", err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("config " + key)
	}
	return rows[0].Value, nil
}

// SetConfig stores value under key.
func (r *KnowledgeRepository) SetConfig(ctx context.Context, key string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return readError("KnowledgeRepository.SetConfig", err)
	}

	row := configRow{Key: key, Value: value, UpdatedAt: r.c.now().UTC()}
	var upserted []configRow
	_, err := r.c.client.From(tableChatConfig).
		Upsert(row, "key", "representation", "").
		ExecuteTo(&upserted)
	if err != nil {
		return readError("KnowledgeRepository.SetConfig", err)
	}
	return nil
}

var _ domain.KnowledgeRepository = (*KnowledgeRepository)(nil)
