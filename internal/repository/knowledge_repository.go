package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/levelapp/funnel/internal/database"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

// KnowledgeRepository implements domain.KnowledgeRepository using PostgreSQL.
// Queries join the transaction carried by ctx, if any.
type KnowledgeRepository struct {
	tx *database.TxManager
}

// NewKnowledgeRepository creates a new KnowledgeRepository.
func NewKnowledgeRepository(tx *database.TxManager) *KnowledgeRepository {
	return &KnowledgeRepository{tx: tx}
}

var knowledgeSelect = "SELECT " + KnowledgeColumns.Select() + " FROM knowledge_base"

// ListActive returns active entries ordered by priority, highest first.
func (r *KnowledgeRepository) ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	return r.list(ctx, "KnowledgeRepository.ListActive",
		knowledgeSelect+" WHERE is_active ORDER BY priority DESC, section")
}

// List returns every entry ordered by priority, highest first.
func (r *KnowledgeRepository) List(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	return r.list(ctx, "KnowledgeRepository.List",
		knowledgeSelect+" ORDER BY priority DESC, section")
}

func (r *KnowledgeRepository) list(ctx context.Context, op, query string) ([]*domain.KnowledgeEntry, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	rows, err := r.tx.GetQuerier(ctx).Query(ctx, query)
	if err != nil {
		return nil, apperrors.DatabaseError(op, err)
	}
	defer rows.Close()

	entries := []*domain.KnowledgeEntry{}
	for rows.Next() {
		entry, err := scanKnowledgeEntry(rows)
		if err != nil {
			return nil, apperrors.DatabaseError(op, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError(op, err)
	}
	return entries, nil
}

// GetBySection retrieves the entry of a section.
func (r *KnowledgeRepository) GetBySection(ctx context.Context, section domain.Section) (*domain.KnowledgeEntry, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	row := r.tx.GetQuerier(ctx).QueryRow(ctx, knowledgeSelect+" WHERE section = $1", section)
	entry, err := scanKnowledgeEntry(row)
	if err != nil {
		return nil, readError("KnowledgeRepository.GetBySection", "knowledge entry", err)
	}
	return entry, nil
}

// GetByID retrieves an entry by ID.
func (r *KnowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeEntry, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	row := r.tx.GetQuerier(ctx).QueryRow(ctx, knowledgeSelect+" WHERE id = $1", id)
	entry, err := scanKnowledgeEntry(row)
	if err != nil {
		return nil, readError("KnowledgeRepository.GetByID", "knowledge entry", err)
	}
	return entry, nil
}

// Create inserts a new entry. A second entry for the same section is a conflict.
func (r *KnowledgeRepository) Create(ctx context.Context, entry *domain.KnowledgeEntry) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	content, err := entry.RawContent()
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Create", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	query := fmt.Sprintf("INSERT INTO knowledge_base (%s) VALUES (%s)",
		KnowledgeColumns.InsertColumns(), KnowledgeColumns.Placeholders())
	_, err = r.tx.GetQuerier(ctx).Exec(ctx, query,
		entry.ID,
		entry.Section,
		entry.Title,
		content,
		entry.IsActive,
		entry.Priority,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return writeError("KnowledgeRepository.Create", "knowledge entry",
			fmt.Sprintf("an entry already exists for section %s", entry.Section), err)
	}
	return nil
}

// Upsert inserts or replaces the entry of entry.Section. On replace the
// existing ID and creation time are kept and copied back onto entry.
func (r *KnowledgeRepository) Upsert(ctx context.Context, entry *domain.KnowledgeEntry) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	content, err := entry.RawContent()
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Upsert", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	query := fmt.Sprintf(`
		INSERT INTO knowledge_base (%s) VALUES (%s)
		ON CONFLICT (section) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			is_active = EXCLUDED.is_active,
			priority = EXCLUDED.priority,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		KnowledgeColumns.InsertColumns(), KnowledgeColumns.Placeholders())

	err = r.tx.GetQuerier(ctx).QueryRow(ctx, query,
		entry.ID,
		entry.Section,
		entry.Title,
		content,
		entry.IsActive,
		entry.Priority,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperrors.DatabaseError("KnowledgeRepository.Upsert", err)
	}
	return nil
}

// Update writes every mutable field of an existing entry.
func (r *KnowledgeRepository) Update(ctx context.Context, entry *domain.KnowledgeEntry) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	content, err := entry.RawContent()
	if err != nil {
		return apperrors.Wrap(err, "KnowledgeRepository.Update", apperrors.CodeInvalidFormat, "invalid knowledge content")
	}

	query := `
		UPDATE knowledge_base SET
			title = $2,
			content = $3,
			is_active = $4,
			priority = $5,
			updated_at = $6
		WHERE id = $1`

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, query,
		entry.ID,
		entry.Title,
		content,
		entry.IsActive,
		entry.Priority,
		entry.UpdatedAt,
	)
	if err != nil {
		return apperrors.DatabaseError("KnowledgeRepository.Update", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("knowledge entry")
	}
	return nil
}

// DeleteBySection removes the entry of a section. Its versions go with it
// through the foreign key cascade.
func (r *KnowledgeRepository) DeleteBySection(ctx context.Context, section domain.Section) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	result, err := r.tx.GetQuerier(ctx).Exec(ctx, "DELETE FROM knowledge_base WHERE section = $1", section)
	if err != nil {
		return apperrors.DatabaseError("KnowledgeRepository.DeleteBySection", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("knowledge entry")
	}
	return nil
}

// AppendVersion stores a snapshot and assigns the next version number. The
// entry row is locked for the duration so concurrent appends are serialized.
func (r *KnowledgeRepository) AppendVersion(ctx context.Context, knowledgeID uuid.UUID, content json.RawMessage, createdBy string) (*domain.KnowledgeVersion, error) {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	version := &domain.KnowledgeVersion{
		ID:          uuid.New(),
		KnowledgeID: knowledgeID,
		Content:     content,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}

	err := r.tx.WithTransactionContext(ctx, func(ctx context.Context) error {
		q := r.tx.GetQuerier(ctx)

		var locked uuid.UUID
		err := q.QueryRow(ctx, "SELECT id FROM knowledge_base WHERE id = $1 FOR UPDATE", knowledgeID).Scan(&locked)
		if err != nil {
			return readError("KnowledgeRepository.AppendVersion", "knowledge entry", err)
		}

		query := `
			INSERT INTO knowledge_versions (id, knowledge_id, version_number, content, created_by, created_at)
			SELECT $1, $2, COALESCE(MAX(version_number), 0) + 1, $3, $4, $5
			FROM knowledge_versions
			WHERE knowledge_id = $2
			RETURNING version_number`

		err = q.QueryRow(ctx, query,
			version.ID,
			version.KnowledgeID,
			version.Content,
			version.CreatedBy,
			version.CreatedAt,
		).Scan(&version.VersionNumber)
		if err != nil {
			return writeError("KnowledgeRepository.AppendVersion", "knowledge entry",
				"version number already taken", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.GetCode(err) == apperrors.CodeInternal {
			return nil, apperrors.DatabaseError("KnowledgeRepository.AppendVersion", err)
		}
		return nil, err
	}
	return version, nil
}

// ListVersions returns an entry's versions, newest first.
func (r *KnowledgeRepository) ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error) {
	ctx, cancel := WithListQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + KnowledgeVersionColumns.Select() + `
		FROM knowledge_versions
		WHERE knowledge_id = $1
		ORDER BY version_number DESC`

	rows, err := r.tx.GetQuerier(ctx).Query(ctx, query, knowledgeID)
	if err != nil {
		return nil, apperrors.DatabaseError("KnowledgeRepository.ListVersions", err)
	}
	defer rows.Close()

	versions := []*domain.KnowledgeVersion{}
	for rows.Next() {
		v, err := scanKnowledgeVersion(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("KnowledgeRepository.ListVersions", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("KnowledgeRepository.ListVersions", err)
	}
	return versions, nil
}

// GetVersion retrieves a version by ID.
func (r *KnowledgeRepository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.KnowledgeVersion, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	query := "SELECT " + KnowledgeVersionColumns.Select() + " FROM knowledge_versions WHERE id = $1"
	v, err := scanKnowledgeVersion(r.tx.GetQuerier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, readError("KnowledgeRepository.GetVersion", "knowledge version", err)
	}
	return v, nil
}

// GetConfig returns the raw value stored under key.
func (r *KnowledgeRepository) GetConfig(ctx context.Context, key string) (json.RawMessage, error) {
	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	var value []byte
	err := r.tx.GetQuerier(ctx).QueryRow(ctx, "SELECT value FROM chat_config WHERE key = $1", key).Scan(&value)
	if err != nil {
		return nil, readError("KnowledgeRepository.GetConfig", "config "+key, err)
	}
	return json.RawMessage(value), nil
}

// SetConfig stores value under key.
func (r *KnowledgeRepository) SetConfig(ctx context.Context, key string, value json.RawMessage) error {
	ctx, cancel := WithWriteTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO chat_config (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	if _, err := r.tx.GetQuerier(ctx).Exec(ctx, query, key, []byte(value)); err != nil {
		return apperrors.DatabaseError("KnowledgeRepository.SetConfig", err)
	}
	return nil
}

func scanKnowledgeEntry(row pgx.Row) (*domain.KnowledgeEntry, error) {
	var (
		entry domain.KnowledgeEntry
		raw   []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.Section,
		&entry.Title,
		&raw,
		&entry.IsActive,
		&entry.Priority,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Content = decodeStoredContent(entry.Section, raw)
	return &entry, nil
}

// decodeStoredContent decodes a stored payload. A payload that no longer
// matches its section is kept raw so one bad row cannot hide the others.
func decodeStoredContent(section domain.Section, raw []byte) domain.KnowledgeContent {
	content, err := domain.DecodeContent(section, raw)
	if err != nil {
		return domain.UnknownContent{Tag: section, Raw: append(json.RawMessage(nil), raw...)}
	}
	return content
}

func scanKnowledgeVersion(row pgx.Row) (*domain.KnowledgeVersion, error) {
	var (
		v   domain.KnowledgeVersion
		raw []byte
	)
	err := row.Scan(
		&v.ID,
		&v.KnowledgeID,
		&v.VersionNumber,
		&raw,
		&v.CreatedBy,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Content = json.RawMessage(raw)
	return &v, nil
}
