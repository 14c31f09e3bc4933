package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/levelapp/funnel/internal/domain"
	apperrors "github.com/levelapp/funnel/internal/errors"
)

func TestNewRepositories(t *testing.T) {
	// Constructors only; queries need a live database.
	if repo := NewKnowledgeRepository(nil); repo == nil || repo.tx != nil {
		t.Error("expected knowledge repository with nil tx manager")
	}
	if repo := NewLeadRepository(nil); repo == nil || repo.tx != nil {
		t.Error("expected lead repository with nil tx manager")
	}
	if repo := NewQuoteRepository(nil); repo == nil || repo.tx != nil {
		t.Error("expected quote repository with nil tx manager")
	}
	if repo := NewAdminUserRepository(nil); repo == nil || repo.tx != nil {
		t.Error("expected admin user repository with nil tx manager")
	}
	if repo := NewSessionRepository(nil); repo == nil || repo.tx != nil {
		t.Error("expected session repository with nil tx manager")
	}
}

func TestRepositoriesImplementDomain(t *testing.T) {
	var (
		_ domain.KnowledgeRepository = (*KnowledgeRepository)(nil)
		_ domain.LeadRepository      = (*LeadRepository)(nil)
		_ domain.QuoteRepository     = (*QuoteRepository)(nil)
		_ domain.AdminUserRepository = (*AdminUserRepository)(nil)
		_ domain.SessionRepository   = (*SessionRepository)(nil)
	)
}

func TestReadError(t *testing.T) {
	err := readError("LeadRepository.GetByID", "lead", pgx.ErrNoRows)
	if !apperrors.IsNotFound(err) {
		t.Errorf("readError(ErrNoRows) = %v, want not found", err)
	}

	cause := errors.New("connection reset")
	err = readError("LeadRepository.GetByID", "lead", cause)
	if apperrors.GetCode(err) != apperrors.CodeDatabase || !errors.Is(err, cause) {
		t.Errorf("readError(other) = %v, want database error wrapping cause", err)
	}
}

func TestWriteError(t *testing.T) {
	unique := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "knowledge_base_section_key"})
	err := writeError("KnowledgeRepository.Create", "knowledge entry", "an entry already exists for section faq", unique)
	if !apperrors.IsConflict(err) {
		t.Fatalf("writeError(23505) = %v, want conflict", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Message != "an entry already exists for section faq" {
		t.Errorf("conflict message = %q", appErr.Message)
	}

	fk := &pgconn.PgError{Code: "23503"}
	if err := writeError("KnowledgeRepository.AppendVersion", "knowledge entry", "", fk); !apperrors.IsNotFound(err) {
		t.Errorf("writeError(23503) = %v, want not found", err)
	}

	if err := writeError("LeadRepository.Create", "lead", "", errors.New("boom")); apperrors.GetCode(err) != apperrors.CodeDatabase {
		t.Errorf("writeError(other) code = %v, want database", apperrors.GetCode(err))
	}
}

func TestWithTimeout_RespectsShorterDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ctx, done := WithWriteTimeout(parent)
	defer done()

	if ctx != parent {
		t.Error("expected the parent context when its deadline is sooner")
	}

	ctx, done = WithListQueryTimeout(context.Background())
	defer done()
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > DefaultListQueryTimeout {
		t.Errorf("expected a deadline within %v", DefaultListQueryTimeout)
	}
}

func TestDecodeStoredContent(t *testing.T) {
	content := decodeStoredContent(domain.SectionFAQ, []byte(`{"items":[{"question":"Q","answer":"A"}]}`))
	faq, ok := content.(domain.FAQContent)
	if !ok || len(faq.Items) != 1 {
		t.Fatalf("decodeStoredContent(faq) = %#v", content)
	}

	broken := decodeStoredContent(domain.SectionFAQ, []byte(`{"items":"not a list"}`))
	unknown, ok := broken.(domain.UnknownContent)
	if !ok || unknown.Tag != domain.SectionFAQ {
		t.Errorf("decodeStoredContent(broken) = %#v, want raw content", broken)
	}
}

func TestQuoteArgs_Order(t *testing.T) {
	q := domain.NewQuote(domain.QuoteForm{
		QuoteSelection: domain.QuoteSelection{
			SelectedPlan:  domain.PlanBusiness,
			SelectedPacks: []domain.Pack{domain.PackAuth},
			ExtraScreens:  map[domain.ScreenTier]int{domain.TierComplex: 2},
		},
	}, 6400, 0)

	args, err := quoteArgs(q)
	if err != nil {
		t.Fatalf("quoteArgs() error: %v", err)
	}
	if len(args) != QuoteColumns.Count() {
		t.Fatalf("quoteArgs() returned %d values for %d columns", len(args), QuoteColumns.Count())
	}
	if args[0] != q.ID {
		t.Errorf("first arg = %v, want id", args[0])
	}
	if got := string(args[14].([]byte)); got != `{"complex":2}` {
		t.Errorf("extra_screens arg = %s", got)
	}
	if got := args[13].([]string); len(got) != 1 || got[0] != "auth_pack" {
		t.Errorf("selected_packs arg = %v", got)
	}
}
