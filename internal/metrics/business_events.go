package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/sanitize"
)

// BusinessEventLogger writes structured logs for funnel events. It complements
// the Prometheus counters with per-event detail, with contact data masked.
type BusinessEventLogger struct {
	logger *zap.Logger
}

// NewBusinessEventLogger creates a new business event logger.
func NewBusinessEventLogger(logger *zap.Logger) *BusinessEventLogger {
	return &BusinessEventLogger{
		logger: logger.Named("business_events"),
	}
}

// LeadCaptured logs a lead submitted from the calculator.
func (l *BusinessEventLogger) LeadCaptured(ctx context.Context, leadID uuid.UUID, email, phone string, minPrice, maxPrice int, utmSource string) {
	l.logger.Info("lead_captured",
		zap.String("event_type", "lead.captured"),
		zap.String("lead_id", leadID.String()),
		zap.String("email", sanitize.Email(email)),
		zap.String("phone", sanitize.Phone(phone)),
		zap.Int("estimate_min", minPrice),
		zap.Int("estimate_max", maxPrice),
		zap.String("utm_source", utmSource),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// BookingUpdated logs a booking attached to a lead.
func (l *BusinessEventLogger) BookingUpdated(ctx context.Context, leadID uuid.UUID, scheduled bool) {
	l.logger.Info("booking_updated",
		zap.String("event_type", "lead.booking"),
		zap.String("lead_id", leadID.String()),
		zap.Bool("scheduled", scheduled),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// QuoteSaved logs an admin quote save.
func (l *BusinessEventLogger) QuoteSaved(ctx context.Context, quoteID uuid.UUID, company string, total int, created bool) {
	op := "quote.updated"
	if created {
		op = "quote.created"
	}
	l.logger.Info("quote_saved",
		zap.String("event_type", op),
		zap.String("quote_id", quoteID.String()),
		zap.String("company", company),
		zap.Int("total_price", total),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// KnowledgeChanged logs a knowledge base mutation. version is 0 when no
// snapshot was written.
func (l *BusinessEventLogger) KnowledgeChanged(ctx context.Context, section, operation string, version int) {
	fields := []zap.Field{
		zap.String("event_type", "knowledge."+operation),
		zap.String("section", section),
		zap.Time("timestamp", time.Now().UTC()),
	}
	if version > 0 {
		fields = append(fields, zap.Int("version", version))
	}
	l.logger.Info("knowledge_changed", fields...)
}

// UserLogin logs an admin login attempt.
func (l *BusinessEventLogger) UserLogin(ctx context.Context, userID uuid.UUID, email, ip string, success bool) {
	if success {
		l.logger.Info("user_login",
			zap.String("event_type", "user.login"),
			zap.String("user_id", userID.String()),
			zap.String("email", sanitize.Email(email)),
			zap.String("ip", ip),
			zap.Bool("success", true),
			zap.Time("timestamp", time.Now().UTC()),
		)
		return
	}
	l.logger.Warn("user_login_failed",
		zap.String("event_type", "user.login_failed"),
		zap.String("email", sanitize.Email(email)),
		zap.String("ip", ip),
		zap.Bool("success", false),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// UserLogout logs an admin logout.
func (l *BusinessEventLogger) UserLogout(ctx context.Context, userID uuid.UUID) {
	l.logger.Info("user_logout",
		zap.String("event_type", "user.logout"),
		zap.String("user_id", userID.String()),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// ChatStreamed logs the end of a relayed chat stream.
func (l *BusinessEventLogger) ChatStreamed(ctx context.Context, outcome string, turns, deltas int, duration time.Duration) {
	level := l.logger.Info
	if outcome == ChatOutcomeFailed || outcome == ChatOutcomeTruncated {
		level = l.logger.Warn
	}
	level("chat_streamed",
		zap.String("event_type", "chat."+outcome),
		zap.Int("turns", turns),
		zap.Int("deltas", deltas),
		zap.Duration("duration", duration),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a rate limit is exceeded.
func (l *BusinessEventLogger) RateLimitExceeded(ctx context.Context, limiterType string, identifier string) {
	l.logger.Warn("rate_limit_exceeded",
		zap.String("event_type", "rate_limit.exceeded"),
		zap.String("limiter_type", limiterType),
		zap.String("identifier", sanitize.ID(identifier)),
		zap.Time("timestamp", time.Now().UTC()),
	)
}
