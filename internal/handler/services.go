package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/chat"
	"github.com/levelapp/funnel/internal/domain"
	"github.com/levelapp/funnel/internal/llm"
	"github.com/levelapp/funnel/internal/pricing"
	"github.com/levelapp/funnel/internal/service"
)

// AuthService authenticates admins.
type AuthService interface {
	Login(ctx context.Context, email, password, ip string) (*domain.Session, *domain.AdminUser, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*domain.AdminUser, error)
}

// LeadService prices selections and records leads.
type LeadService interface {
	Estimate(sel domain.Selection) (*service.Estimate, error)
	Submit(ctx context.Context, sub service.LeadSubmission) (*domain.Lead, *service.Estimate, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, booking domain.Booking) (*domain.Lead, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Lead, error)
}

// QuoteService prices and stores admin quotes.
type QuoteService interface {
	Price(sel domain.QuoteSelection) pricing.QuoteResult
	Create(ctx context.Context, form domain.QuoteForm) (*domain.Quote, error)
	Update(ctx context.Context, id uuid.UUID, form domain.QuoteForm) (*domain.Quote, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Quote, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Quote, error)
}

// KnowledgeService is the knowledge base CMS.
type KnowledgeService interface {
	Sections() []domain.SectionInfo
	List(ctx context.Context) ([]*domain.KnowledgeEntry, error)
	Get(ctx context.Context, section domain.Section) (*domain.KnowledgeEntry, error)
	Create(ctx context.Context, entry *domain.KnowledgeEntry) error
	Update(ctx context.Context, section domain.Section, update domain.KnowledgeUpdate) (*domain.KnowledgeEntry, error)
	Delete(ctx context.Context, section domain.Section) error
	ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error)
	CreateVersion(ctx context.Context, knowledgeID uuid.UUID, createdBy string) (*domain.KnowledgeVersion, error)
	RestoreVersion(ctx context.Context, versionID uuid.UUID) (*domain.KnowledgeEntry, error)
	Import(ctx context.Context) ([]service.ImportResult, error)
	Preview(ctx context.Context) service.PromptPreview
	GetSystemPrompt(ctx context.Context) (domain.SystemPromptConfig, error)
	SetSystemPrompt(ctx context.Context, config domain.SystemPromptConfig) error
}

// ChatRelay answers visitor conversations.
type ChatRelay interface {
	Respond(ctx context.Context, transcript []llm.Message, sink chat.Sink) (chat.Result, error)
	Ask(ctx context.Context, transcript []llm.Message) (string, error)
}
