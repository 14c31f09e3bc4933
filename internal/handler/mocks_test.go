package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/levelapp/funnel/internal/chat"
	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
	"github.com/levelapp/funnel/internal/llm"
	"github.com/levelapp/funnel/internal/pricing"
	"github.com/levelapp/funnel/internal/service"
)

// fakeAuthService accepts one email/password pair and one session token.
type fakeAuthService struct {
	mu       sync.Mutex
	email    string
	password string
	token    string
	user     *domain.AdminUser
	expired  bool

	loggedOut []string
}

func newFakeAuthService() *fakeAuthService {
	return &fakeAuthService{
		email:    "admin@levelapp.fr",
		password: "correct-horse-battery",
		token:    "tok-123",
		user: &domain.AdminUser{
			ID:    uuid.MustParse("7d3c8a5e-2b1f-4c6d-9e0a-1b2c3d4e5f60"),
			Email: "admin@levelapp.fr",
			Role:  domain.RoleAdmin,
		},
	}
}

func (f *fakeAuthService) Login(_ context.Context, email, password, _ string) (*domain.Session, *domain.AdminUser, error) {
	if email != f.email || password != f.password {
		return nil, nil, apperrors.ErrInvalidCredentials
	}
	return &domain.Session{
		ID:        uuid.New(),
		UserID:    f.user.ID,
		Token:     f.token,
		ExpiresAt: time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC),
	}, f.user, nil
}

func (f *fakeAuthService) Logout(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, token)
	return nil
}

func (f *fakeAuthService) ValidateSession(_ context.Context, token string) (*domain.AdminUser, error) {
	if token != f.token {
		return nil, apperrors.ErrUnauthorized
	}
	if f.expired {
		return nil, apperrors.ErrSessionExpired
	}
	return f.user, nil
}

// fakeLeadService records submissions in memory.
type fakeLeadService struct {
	mu    sync.Mutex
	leads map[uuid.UUID]*domain.Lead

	estimateErr error
	listErr     error
}

func newFakeLeadService() *fakeLeadService {
	return &fakeLeadService{leads: make(map[uuid.UUID]*domain.Lead)}
}

func (f *fakeLeadService) Estimate(sel domain.Selection) (*service.Estimate, error) {
	if f.estimateErr != nil {
		return nil, f.estimateErr
	}
	if errs := sel.Validate(); errs.HasErrors() {
		return nil, apperrors.ValidationFailed("invalid selection", errs)
	}
	return &service.Estimate{Min: 6500, Max: 8500, PriceRange: "6 500 € - 8 500 €", DeliveryWeeks: 6}, nil
}

func (f *fakeLeadService) Submit(_ context.Context, sub service.LeadSubmission) (*domain.Lead, *service.Estimate, error) {
	est, err := f.Estimate(sub.Selection)
	if err != nil {
		return nil, nil, err
	}
	lead := domain.NewLead(sub.Selection, sub.Contact, sub.Booking, sub.UTM, est.Min, est.Max)

	f.mu.Lock()
	f.leads[lead.ID] = lead
	f.mu.Unlock()
	return lead, est, nil
}

func (f *fakeLeadService) UpdateBooking(_ context.Context, id uuid.UUID, booking domain.Booking) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return nil, apperrors.NotFound("lead")
	}
	lead.SetBooking(booking)
	return lead, nil
}

func (f *fakeLeadService) List(_ context.Context, limit, offset int) ([]*domain.Lead, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Lead
	for _, l := range f.leads {
		out = append(out, l)
	}
	return out, nil
}

// fakeQuoteService stores quotes in memory and prices with the real engine.
type fakeQuoteService struct {
	mu     sync.Mutex
	quotes map[uuid.UUID]*domain.Quote
}

func newFakeQuoteService() *fakeQuoteService {
	return &fakeQuoteService{quotes: make(map[uuid.UUID]*domain.Quote)}
}

func (f *fakeQuoteService) Price(sel domain.QuoteSelection) pricing.QuoteResult {
	return pricing.QuotePrice(sel)
}

func (f *fakeQuoteService) Create(_ context.Context, form domain.QuoteForm) (*domain.Quote, error) {
	if form.ClientInfo.Company == "" {
		return nil, apperrors.MissingField("clientInfo.company")
	}
	q := &domain.Quote{ID: uuid.New(), ClientCompany: form.ClientInfo.Company}
	f.mu.Lock()
	f.quotes[q.ID] = q
	f.mu.Unlock()
	return q, nil
}

func (f *fakeQuoteService) Update(_ context.Context, id uuid.UUID, form domain.QuoteForm) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return nil, apperrors.NotFound("quote")
	}
	q.ClientCompany = form.ClientInfo.Company
	return q, nil
}

func (f *fakeQuoteService) Get(_ context.Context, id uuid.UUID) (*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[id]
	if !ok {
		return nil, apperrors.NotFound("quote")
	}
	return q, nil
}

func (f *fakeQuoteService) List(context.Context, int, int) ([]*domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Quote
	for _, q := range f.quotes {
		out = append(out, q)
	}
	return out, nil
}

// fakeKnowledgeService keeps one entry per section.
type fakeKnowledgeService struct {
	mu       sync.Mutex
	entries  map[domain.Section]*domain.KnowledgeEntry
	versions []*domain.KnowledgeVersion
	prompt   domain.SystemPromptConfig

	lastUpdate domain.KnowledgeUpdate
}

func newFakeKnowledgeService() *fakeKnowledgeService {
	return &fakeKnowledgeService{entries: make(map[domain.Section]*domain.KnowledgeEntry)}
}

func (f *fakeKnowledgeService) Sections() []domain.SectionInfo { return domain.SectionCatalog() }

func (f *fakeKnowledgeService) List(context.Context) ([]*domain.KnowledgeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.KnowledgeEntry
	for _, e := range f.entries {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeKnowledgeService) Get(_ context.Context, section domain.Section) (*domain.KnowledgeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[section]
	if !ok {
		return nil, apperrors.NotFound("knowledge entry")
	}
	return e, nil
}

func (f *fakeKnowledgeService) Create(_ context.Context, entry *domain.KnowledgeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry.Section]; ok {
		return apperrors.Conflict("section already has an entry")
	}
	f.entries[entry.Section] = entry
	return nil
}

func (f *fakeKnowledgeService) Update(_ context.Context, section domain.Section, update domain.KnowledgeUpdate) (*domain.KnowledgeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = update
	e, ok := f.entries[section]
	if !ok {
		return nil, apperrors.NotFound("knowledge entry")
	}
	update.Apply(e)
	return e, nil
}

func (f *fakeKnowledgeService) Delete(_ context.Context, section domain.Section) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[section]; !ok {
		return apperrors.NotFound("knowledge entry")
	}
	delete(f.entries, section)
	return nil
}

func (f *fakeKnowledgeService) ListVersions(_ context.Context, knowledgeID uuid.UUID) ([]*domain.KnowledgeVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.KnowledgeVersion
	for _, v := range f.versions {
		if v.KnowledgeID == knowledgeID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeKnowledgeService) CreateVersion(_ context.Context, knowledgeID uuid.UUID, createdBy string) (*domain.KnowledgeVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID != knowledgeID {
			continue
		}
		raw, err := e.RawContent()
		if err != nil {
			return nil, err
		}
		v := &domain.KnowledgeVersion{
			ID:            uuid.New(),
			KnowledgeID:   knowledgeID,
			VersionNumber: len(f.versions) + 1,
			Content:       raw,
			CreatedBy:     createdBy,
		}
		f.versions = append(f.versions, v)
		return v, nil
	}
	return nil, apperrors.NotFound("knowledge entry")
}

func (f *fakeKnowledgeService) RestoreVersion(_ context.Context, versionID uuid.UUID) (*domain.KnowledgeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.versions {
		if v.ID != versionID {
			continue
		}
		for _, e := range f.entries {
			if e.ID == v.KnowledgeID {
				content, err := domain.DecodeContent(e.Section, v.Content)
				if err != nil {
					return nil, err
				}
				e.Content = content
				return e, nil
			}
		}
	}
	return nil, apperrors.NotFound("version")
}

func (f *fakeKnowledgeService) Import(context.Context) ([]service.ImportResult, error) {
	return []service.ImportResult{
		{Section: domain.SectionPricing, Success: true},
		{Section: domain.SectionFAQ, Success: false, Error: "upsert failed"},
		{Section: domain.SectionProcess, Success: true},
	}, nil
}

func (f *fakeKnowledgeService) Preview(context.Context) service.PromptPreview {
	return service.PromptPreview{Prompt: "Tu es l'assistant de Level App.", Length: 31, EstimatedTokens: 8}
}

func (f *fakeKnowledgeService) GetSystemPrompt(context.Context) (domain.SystemPromptConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompt, nil
}

func (f *fakeKnowledgeService) SetSystemPrompt(_ context.Context, config domain.SystemPromptConfig) error {
	if config.Prompt == "" {
		return apperrors.MissingField("prompt")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompt = config
	return nil
}

// fakeRelay replays scripted deltas and then returns err.
type fakeRelay struct {
	mu       sync.Mutex
	deltas   []string
	err      error
	answer   string
	received []llm.Message

	// block, when set, is waited on before answering.
	block chan struct{}
}

func (f *fakeRelay) Respond(ctx context.Context, transcript []llm.Message, sink chat.Sink) (chat.Result, error) {
	f.mu.Lock()
	f.received = transcript
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return chat.Result{Outcome: "canceled"}, ctx.Err()
		}
	}

	written := 0
	for _, d := range f.deltas {
		if err := sink.WriteDelta(d); err != nil {
			return chat.Result{Outcome: "canceled", Deltas: written}, nil
		}
		written++
	}
	if f.err != nil {
		if written > 0 {
			return chat.Result{Outcome: "truncated", Deltas: written}, nil
		}
		return chat.Result{Outcome: "failed"}, f.err
	}
	return chat.Result{Outcome: "completed", Deltas: written}, nil
}

func (f *fakeRelay) Ask(_ context.Context, transcript []llm.Message) (string, error) {
	f.mu.Lock()
	f.received = transcript
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
