// Package supabase implements the domain repositories on the Supabase REST
// API. It is the storage driver used when the funnel runs without a direct
// PostgreSQL connection.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/supabase-community/supabase-go"

	apperrors "github.com/levelapp/funnel/internal/errors"
)

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
}

// Client is the Supabase connection shared by the repositories.
type Client struct {
	client *supabase.Client
	now    func() time.Time
}

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{client: client, now: time.Now}, nil
}

// Ping checks that the REST endpoint answers a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := c.client.From(tableChatConfig).
		Select("key", "", false).
		Limit(1, "").
		Execute()
	return err
}

// Close closes the Supabase client
func (c *Client) Close() error {
	// Supabase client doesn't require explicit close
	return nil
}

// WithTransactionContext runs fn directly. Each REST call commits on its own,
// so grouped writes are not atomic on this driver.
func (c *Client) WithTransactionContext(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Table names of the hosted project. The postgres driver's migrations name
// the knowledge and config tables knowledge_base and chat_config.
const (
	tableKnowledge  = "chatbot_knowledge"
	tableVersions   = "knowledge_versions"
	tableChatConfig = "chatbot_config"
	tableLeads      = "leads"
	tableQuotes     = "quotes"
	tableAdminUsers = "admin_users"
	tableSessions   = "admin_sessions"
)

// PostgreSQL error codes relayed by PostgREST.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// postgrest-go flattens error responses to "(code) message".
var errCodePattern = regexp.MustCompile(`^\(([0-9A-Z]+)\)`)

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	m := errCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}

// readError maps a failed read to an application error.
func readError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, op, apperrors.CodeTimeout, "request cancelled")
	}
	return apperrors.DatabaseError(op, err)
}

// writeError maps a failed write to an application error.
func writeError(op, resource, conflictMsg string, err error) error {
	switch errorCode(err) {
	case pgUniqueViolation:
		return apperrors.Wrap(err, op, apperrors.CodeConflict, conflictMsg)
	case pgForeignKeyViolation:
		return apperrors.NotFound(resource)
	}
	return readError(op, err)
}

// timestamp formats t the way PostgREST filters expect it.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
