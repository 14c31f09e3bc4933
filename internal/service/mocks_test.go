package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/metrics"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
}

// MockKnowledgeRepository is an in-memory domain.KnowledgeRepository.
type MockKnowledgeRepository struct {
	mu       sync.RWMutex
	entries  map[domain.Section]*domain.KnowledgeEntry
	versions []*domain.KnowledgeVersion
	config   map[string]json.RawMessage

	UpdateCalls        int
	AppendVersionCalls int

	// For injecting errors
	UpsertError        map[domain.Section]error
	AppendVersionError error
	ListError          error
}

func NewMockKnowledgeRepository() *MockKnowledgeRepository {
	return &MockKnowledgeRepository{
		entries:     make(map[domain.Section]*domain.KnowledgeEntry),
		config:      make(map[string]json.RawMessage),
		UpsertError: make(map[domain.Section]error),
	}
}

func copyEntry(e *domain.KnowledgeEntry) *domain.KnowledgeEntry {
	c := *e
	return &c
}

func (m *MockKnowledgeRepository) sorted(activeOnly bool) []*domain.KnowledgeEntry {
	out := []*domain.KnowledgeEntry{}
	for _, e := range m.entries {
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Section < out[j].Section
	})
	return out
}

func (m *MockKnowledgeRepository) ListActive(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.sorted(true), nil
}

func (m *MockKnowledgeRepository) List(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	return m.sorted(false), nil
}

func (m *MockKnowledgeRepository) GetBySection(ctx context.Context, section domain.Section) (*domain.KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[section]; ok {
		return copyEntry(e), nil
	}
	return nil, apperrors.NotFound("knowledge entry")
}

func (m *MockKnowledgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.ID == id {
			return copyEntry(e), nil
		}
	}
	return nil, apperrors.NotFound("knowledge entry")
}

func (m *MockKnowledgeRepository) Create(ctx context.Context, entry *domain.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.Section]; ok {
		return apperrors.Conflict("duplicate section")
	}
	m.entries[entry.Section] = copyEntry(entry)
	return nil
}

func (m *MockKnowledgeRepository) Upsert(ctx context.Context, entry *domain.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpsertError[entry.Section]; err != nil {
		return err
	}
	if existing, ok := m.entries[entry.Section]; ok {
		entry.ID = existing.ID
		entry.CreatedAt = existing.CreatedAt
	}
	m.entries[entry.Section] = copyEntry(entry)
	return nil
}

func (m *MockKnowledgeRepository) Update(ctx context.Context, entry *domain.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	existing, ok := m.entries[entry.Section]
	if !ok || existing.ID != entry.ID {
		return apperrors.NotFound("knowledge entry")
	}
	m.entries[entry.Section] = copyEntry(entry)
	return nil
}

func (m *MockKnowledgeRepository) DeleteBySection(ctx context.Context, section domain.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[section]
	if !ok {
		return apperrors.NotFound("knowledge entry")
	}
	delete(m.entries, section)
	kept := m.versions[:0]
	for _, v := range m.versions {
		if v.KnowledgeID != e.ID {
			kept = append(kept, v)
		}
	}
	m.versions = kept
	return nil
}

func (m *MockKnowledgeRepository) AppendVersion(ctx context.Context, knowledgeID uuid.UUID, content json.RawMessage, createdBy string) (*domain.KnowledgeVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendVersionCalls++
	if m.AppendVersionError != nil {
		return nil, m.AppendVersionError
	}
	next := 1
	for _, v := range m.versions {
		if v.KnowledgeID == knowledgeID && v.VersionNumber >= next {
			next = v.VersionNumber + 1
		}
	}
	v := &domain.KnowledgeVersion{
		ID:            uuid.New(),
		KnowledgeID:   knowledgeID,
		VersionNumber: next,
		Content:       append(json.RawMessage(nil), content...),
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
	}
	m.versions = append(m.versions, v)
	return v, nil
}

func (m *MockKnowledgeRepository) ListVersions(ctx context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.KnowledgeVersion{}
	for _, v := range m.versions {
		if v.KnowledgeID == knowledgeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (m *MockKnowledgeRepository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.KnowledgeVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, apperrors.NotFound("knowledge version")
}

func (m *MockKnowledgeRepository) GetConfig(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.config[key]; ok {
		return v, nil
	}
	return nil, apperrors.NotFound("config " + key)
}

func (m *MockKnowledgeRepository) SetConfig(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config[key] = value
	return nil
}

// MockLeadRepository is an in-memory domain.LeadRepository.
type MockLeadRepository struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]*domain.Lead

	CreateCalls int
	CreateError error
}

func NewMockLeadRepository() *MockLeadRepository {
	return &MockLeadRepository{leads: make(map[uuid.UUID]*domain.Lead)}
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *MockLeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if lead, ok := m.leads[id]; ok {
		c := *lead
		return &c, nil
	}
	return nil, apperrors.NotFound("lead")
}

func (m *MockLeadRepository) UpdateBooking(ctx context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[lead.ID]; !ok {
		return apperrors.NotFound("lead")
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *MockLeadRepository) List(ctx context.Context, limit, offset int) ([]*domain.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Lead{}
	for _, lead := range m.leads {
		out = append(out, lead)
	}
	return out, nil
}

// MockQuoteRepository is an in-memory domain.QuoteRepository.
type MockQuoteRepository struct {
	mu     sync.RWMutex
	quotes map[uuid.UUID]*domain.Quote

	UpdateCalls int
}

func NewMockQuoteRepository() *MockQuoteRepository {
	return &MockQuoteRepository{quotes: make(map[uuid.UUID]*domain.Quote)}
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *quote
	m.quotes[quote.ID] = &c
	return nil
}

func (m *MockQuoteRepository) Update(ctx context.Context, quote *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if _, ok := m.quotes[quote.ID]; !ok {
		return apperrors.NotFound("quote")
	}
	c := *quote
	m.quotes[quote.ID] = &c
	return nil
}

func (m *MockQuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.quotes[id]; ok {
		c := *q
		return &c, nil
	}
	return nil, apperrors.NotFound("quote")
}

func (m *MockQuoteRepository) List(ctx context.Context, limit, offset int) ([]*domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Quote{}
	for _, q := range m.quotes {
		out = append(out, q)
	}
	return out, nil
}

// MockAdminUserRepository is an in-memory domain.AdminUserRepository.
type MockAdminUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.AdminUser

	CreateCalls int
	UpdateCalls int
}

func NewMockAdminUserRepository() *MockAdminUserRepository {
	return &MockAdminUserRepository{users: make(map[uuid.UUID]*domain.AdminUser)}
}

func (m *MockAdminUserRepository) Create(ctx context.Context, user *domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperrors.Conflict("an account already exists for this email")
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockAdminUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("admin user")
}

func (m *MockAdminUserRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.NotFound("admin user")
}

func (m *MockAdminUserRepository) Update(ctx context.Context, user *domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if _, ok := m.users[user.ID]; !ok {
		return apperrors.NotFound("admin user")
	}
	m.users[user.ID] = user
	return nil
}

// MockSessionRepository is an in-memory domain.SessionRepository. Expiry
// for DeleteExpired is judged against Now.
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	Now      func() time.Time

	CreateCalls        int
	DeleteCalls        int
	DeleteExpiredCalls int
	DeleteExpiredError error
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		sessions: make(map[string]*domain.Session),
		Now:      time.Now,
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[token]; ok {
		return s, nil
	}
	return nil, apperrors.NotFound("session")
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	delete(m.sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteExpiredCalls++
	if m.DeleteExpiredError != nil {
		return 0, m.DeleteExpiredError
	}
	var n int64
	now := m.Now()
	for token, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *MockSessionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MockSessionRepository) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DeleteExpiredCalls
}

// mockTransactor records transactions and runs fn inline.
type mockTransactor struct {
	mu    sync.Mutex
	calls int
}

func (t *mockTransactor) WithTransactionContext(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(ctx)
}

// mockInvalidator counts cache invalidations.
type mockInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (i *mockInvalidator) Invalidate(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
}

func (i *mockInvalidator) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

// stubPrompts returns a fixed prompt.
type stubPrompts string

func (p stubPrompts) BuildSystemPrompt(ctx context.Context) string { return string(p) }
