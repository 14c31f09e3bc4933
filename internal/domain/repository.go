package domain

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// KnowledgeRepository persists knowledge entries, their version history and
// chat configuration values.
type KnowledgeRepository interface {
	// ListActive returns active entries ordered by priority, highest first.
	ListActive(ctx context.Context) ([]*KnowledgeEntry, error)

	// List returns every entry ordered by priority, highest first.
	List(ctx context.Context) ([]*KnowledgeEntry, error)

	// GetBySection retrieves the entry of a section.
	GetBySection(ctx context.Context, section Section) (*KnowledgeEntry, error)

	// GetByID retrieves an entry by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*KnowledgeEntry, error)

	// Create inserts a new entry. A second entry for the same section is a conflict.
	Create(ctx context.Context, entry *KnowledgeEntry) error

	// Upsert inserts or replaces the entry of entry.Section.
	Upsert(ctx context.Context, entry *KnowledgeEntry) error

	// Update writes every mutable field of an existing entry.
	Update(ctx context.Context, entry *KnowledgeEntry) error

	// DeleteBySection removes the entry of a section and its versions.
	DeleteBySection(ctx context.Context, section Section) error

	// AppendVersion stores a snapshot and assigns the next version number.
	AppendVersion(ctx context.Context, knowledgeID uuid.UUID, content json.RawMessage, createdBy string) (*KnowledgeVersion, error)

	// ListVersions returns an entry's versions, newest first.
	ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*KnowledgeVersion, error)

	// GetVersion retrieves a version by ID.
	GetVersion(ctx context.Context, id uuid.UUID) (*KnowledgeVersion, error)

	// GetConfig returns the raw value stored under key.
	GetConfig(ctx context.Context, key string) (json.RawMessage, error)

	// SetConfig stores value under key.
	SetConfig(ctx context.Context, key string, value json.RawMessage) error
}

// LeadRepository persists calculator leads.
type LeadRepository interface {
	// Create inserts a new lead.
	Create(ctx context.Context, lead *Lead) error

	// GetByID retrieves a lead by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Lead, error)

	// UpdateBooking writes the booking fields of a lead.
	UpdateBooking(ctx context.Context, lead *Lead) error

	// List retrieves leads, newest first.
	List(ctx context.Context, limit, offset int) ([]*Lead, error)
}

// QuoteRepository persists admin quotes.
type QuoteRepository interface {
	// Create inserts a new quote.
	Create(ctx context.Context, quote *Quote) error

	// Update replaces an existing quote.
	Update(ctx context.Context, quote *Quote) error

	// GetByID retrieves a quote by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Quote, error)

	// List retrieves quotes, most recently updated first.
	List(ctx context.Context, limit, offset int) ([]*Quote, error)
}

// AdminUserRepository persists back-office accounts.
type AdminUserRepository interface {
	// Create inserts a new account.
	Create(ctx context.Context, user *AdminUser) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*AdminUser, error)

	// GetByEmail retrieves an account by normalized email.
	GetByEmail(ctx context.Context, email string) (*AdminUser, error)

	// Update writes the password hash and role of an account.
	Update(ctx context.Context, user *AdminUser) error
}

// SessionRepository persists admin sessions.
type SessionRepository interface {
	// Create inserts a new session.
	Create(ctx context.Context, session *Session) error

	// GetByToken retrieves a session by its token.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
