package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/knowledge"
	"github.com/levelapp/funnel/internal/metrics"
)

// Transactor runs fn so that the repository calls it makes share one
// transaction where the store supports it.
type Transactor interface {
	WithTransactionContext(ctx context.Context, fn func(ctx context.Context) error) error
}

// PromptInvalidator drops a cached compiled prompt.
type PromptInvalidator interface {
	Invalidate(ctx context.Context)
}

// PromptPreview is the compiled prompt as the chat would see it.
type PromptPreview struct {
	Prompt          string `json:"prompt"`
	Length          int    `json:"length"`
	EstimatedTokens int    `json:"estimatedTokens"`
}

// ImportResult reports the outcome of seeding one section.
type ImportResult struct {
	Section domain.Section `json:"section"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
}

// KnowledgeService is the knowledge base CMS. Every mutation invalidates the
// compiled prompt cache.
type KnowledgeService struct {
	store   domain.KnowledgeRepository
	tx      Transactor
	prompts knowledge.PromptBuilder
	cache   PromptInvalidator
	metrics *metrics.Metrics
	events  *metrics.BusinessEventLogger
	logger  *zap.Logger
}

// NewKnowledgeService creates a new KnowledgeService. store may be nil when no
// knowledge store is configured; every operation then reports the store as
// unavailable. prompts builds previews and should bypass the cache. cache may
// be nil.
func NewKnowledgeService(
	store domain.KnowledgeRepository,
	tx Transactor,
	prompts knowledge.PromptBuilder,
	cache PromptInvalidator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		store:   store,
		tx:      tx,
		prompts: prompts,
		cache:   cache,
		metrics: m,
		events:  metrics.NewBusinessEventLogger(logger),
		logger:  logger.Named("knowledge_cms"),
	}
}

func (s *KnowledgeService) available() error {
	if s.store == nil {
		return apperrors.ServiceUnavailable("knowledge store", nil)
	}
	return nil
}

func (s *KnowledgeService) changed(ctx context.Context, section domain.Section, operation string, version int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	s.metrics.RecordKnowledgeMutation(operation)
	s.events.KnowledgeChanged(ctx, string(section), operation, version)
}

func (s *KnowledgeService) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithTransactionContext(ctx, fn)
}

// Sections returns the display metadata of every section.
func (s *KnowledgeService) Sections() []domain.SectionInfo {
	return domain.SectionCatalog()
}

// List returns every entry, active or not, highest priority first.
func (s *KnowledgeService) List(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// Get returns the entry of a section.
func (s *KnowledgeService) Get(ctx context.Context, section domain.Section) (*domain.KnowledgeEntry, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if !section.Valid() {
		return nil, apperrors.InvalidFormat("section", "one of "+sectionList())
	}
	return s.store.GetBySection(ctx, section)
}

// Create stores a new entry. A section that already has an entry is a conflict.
func (s *KnowledgeService) Create(ctx context.Context, entry *domain.KnowledgeEntry) error {
	if err := s.available(); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	if err := s.store.Create(ctx, entry); err != nil {
		if apperrors.IsConflict(err) {
			return apperrors.Conflict(fmt.Sprintf("an entry already exists for section %s", entry.Section))
		}
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	s.changed(ctx, entry.Section, "create", 0)
	return nil
}

func validateEntry(entry *domain.KnowledgeEntry) error {
	if !entry.Section.Valid() {
		return apperrors.InvalidFormat("section", "one of "+sectionList())
	}
	if strings.TrimSpace(entry.Title) == "" {
		return apperrors.MissingField("title")
	}
	if entry.Content == nil {
		return apperrors.MissingField("content")
	}
	if entry.Content.Section() != entry.Section {
		return apperrors.InvalidRequest("content does not match section " + string(entry.Section))
	}
	return nil
}

// Update applies a partial update to the entry of a section. Before a content
// change the current content is appended as a version in the same transaction,
// so every prior content stays restorable.
func (s *KnowledgeService) Update(ctx context.Context, section domain.Section, update domain.KnowledgeUpdate) (*domain.KnowledgeEntry, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return nil, apperrors.InvalidRequest("no fields to update")
	}
	if update.Content != nil && update.Content.Section() != section {
		return nil, apperrors.InvalidRequest("content does not match section " + string(section))
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, apperrors.MissingField("title")
	}

	var (
		entry   *domain.KnowledgeEntry
		version int
	)
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.store.GetBySection(ctx, section)
		if err != nil {
			return err
		}

		if update.Content != nil {
			v, err := s.snapshot(ctx, entry, domain.VersionAuthorAdmin)
			if err != nil {
				return err
			}
			version = v.VersionNumber
		}

		update.Apply(entry)
		return s.store.Update(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, section, "update", version)
	return entry, nil
}

// snapshot appends the current content of entry as its next version.
func (s *KnowledgeService) snapshot(ctx context.Context, entry *domain.KnowledgeEntry, createdBy string) (*domain.KnowledgeVersion, error) {
	raw, err := entry.RawContent()
	if err != nil {
		return nil, apperrors.InternalError("failed to encode content", err)
	}
	return s.store.AppendVersion(ctx, entry.ID, raw, createdBy)
}

// Delete removes the entry of a section and its versions.
func (s *KnowledgeService) Delete(ctx context.Context, section domain.Section) error {
	if err := s.available(); err != nil {
		return err
	}
	if err := s.store.DeleteBySection(ctx, section); err != nil {
		return err
	}
	s.changed(ctx, section, "delete", 0)
	return nil
}

// ListVersions returns the versions of an entry, newest first.
func (s *KnowledgeService) ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, knowledgeID)
}

// CreateVersion snapshots the current content of an entry.
func (s *KnowledgeService) CreateVersion(ctx context.Context, knowledgeID uuid.UUID, createdBy string) (*domain.KnowledgeVersion, error) {
	if err := s.available(); err != nil {
		return nil, err
	}
	if createdBy == "" {
		createdBy = domain.VersionAuthorAdmin
	}

	var version *domain.KnowledgeVersion
	err := s.inTx(ctx, func(ctx context.Context) error {
		entry, err := s.store.GetByID(ctx, knowledgeID)
		if err != nil {
			return err
		}
		version, err = s.snapshot(ctx, entry, createdBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordKnowledgeMutation("version")
	return version, nil
}

// RestoreVersion writes a version's content back onto its entry. The content
// it replaces is recorded as a new version first.
func (s *KnowledgeService) RestoreVersion(ctx context.Context, versionID uuid.UUID) (*domain.KnowledgeEntry, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	var (
		entry   *domain.KnowledgeEntry
		version *domain.KnowledgeVersion
	)
	err := s.inTx(ctx, func(ctx context.Context) error {
		source, err := s.store.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		entry, err = s.store.GetByID(ctx, source.KnowledgeID)
		if err != nil {
			return err
		}

		content, err := domain.DecodeContent(entry.Section, source.Content)
		if err != nil {
			return apperrors.Wrap(err, "KnowledgeService.RestoreVersion", apperrors.CodeInvalidFormat,
				"stored version does not match its section")
		}

		version, err = s.snapshot(ctx, entry, domain.VersionAuthorRestored)
		if err != nil {
			return err
		}

		domain.KnowledgeUpdate{Content: content}.Apply(entry)
		return s.store.Update(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, entry.Section, "restore", version.VersionNumber)
	return entry, nil
}

// Import seeds every section with its default content, replacing existing
// entries. Each section succeeds or fails on its own.
func (s *KnowledgeService) Import(ctx context.Context) ([]ImportResult, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	defaults := knowledge.DefaultEntries()
	results := make([]ImportResult, 0, len(defaults))
	imported := 0
	for _, entry := range defaults {
		result := ImportResult{Section: entry.Section, Success: true}
		if err := s.store.Upsert(ctx, entry); err != nil {
			s.logger.Warn("failed to import section",
				zap.String("section", string(entry.Section)),
				zap.Error(err),
			)
			result.Success = false
			result.Error = err.Error()
		} else {
			imported++
		}
		results = append(results, result)
	}

	if imported > 0 {
		s.changed(ctx, "all", "import", 0)
	}
	return results, nil
}

// Preview compiles the prompt from the current store contents.
func (s *KnowledgeService) Preview(ctx context.Context) PromptPreview {
	prompt := s.prompts.BuildSystemPrompt(ctx)
	return PromptPreview{
		Prompt:          prompt,
		Length:          utf8.RuneCountInString(prompt),
		EstimatedTokens: knowledge.EstimateTokens(prompt),
	}
}

// GetSystemPrompt returns the configured persona, or the default one.
func (s *KnowledgeService) GetSystemPrompt(ctx context.Context) (domain.SystemPromptConfig, error) {
	if err := s.available(); err != nil {
		return domain.SystemPromptConfig{}, err
	}

	raw, err := s.store.GetConfig(ctx, domain.ConfigKeySystemPrompt)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return knowledge.DefaultSystemPrompt(), nil
		}
		return domain.SystemPromptConfig{}, err
	}

	var config domain.SystemPromptConfig
	if err := json.Unmarshal(raw, &config); err != nil || strings.TrimSpace(config.Prompt) == "" {
		s.logger.Warn("stored system prompt is invalid, returning default", zap.Error(err))
		return knowledge.DefaultSystemPrompt(), nil
	}
	return config, nil
}

// SetSystemPrompt stores the persona.
func (s *KnowledgeService) SetSystemPrompt(ctx context.Context, config domain.SystemPromptConfig) error {
	if err := s.available(); err != nil {
		return err
	}
	if strings.TrimSpace(config.Prompt) == "" {
		return apperrors.MissingField("prompt")
	}

	raw, err := json.Marshal(config)
	if err != nil {
		return apperrors.InternalError("failed to encode system prompt", err)
	}
	if err := s.store.SetConfig(ctx, domain.ConfigKeySystemPrompt, raw); err != nil {
		return fmt.Errorf("failed to save system prompt: %w", err)
	}

	s.changed(ctx, "system_prompt", "config", 0)
	return nil
}

func sectionList() string {
	names := make([]string, len(domain.Sections))
	for i, section := range domain.Sections {
		names[i] = string(section)
	}
	return strings.Join(names, ", ")
}
