package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/metrics"
	"github.com/sistema-escolar/escuela-backend/internal/model"
)

// AuditSink receives audit events. Implementations: the Postgres audit
// repository and the RabbitMQ publisher.
type AuditSink interface {
	Name() string
	Record(ctx context.Context, ev model.AuditEvent) error
}

// RequestMeta identifies where a request came from.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Auditor fans audit events out to the log and every sink. Recording is
// best-effort: sink failures are logged and counted, never returned.
type Auditor struct {
	log     zerolog.Logger
	sinks   []AuditSink
	timeout time.Duration
	now     func() time.Time
}

// NewAuditor creates an Auditor. Each sink call is bounded by timeout.
func NewAuditor(log zerolog.Logger, timeout time.Duration, sinks ...AuditSink) *Auditor {
	return &Auditor{
		log:     log.With().Str("component", "audit").Logger(),
		sinks:   sinks,
		timeout: timeout,
		now:     time.Now,
	}
}

// Record stamps ev with an id and time and delivers it.
func (a *Auditor) Record(ctx context.Context, ev model.AuditEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.At.IsZero() {
		ev.At = a.now().UTC()
	}

	a.log.Info().
		Str("action", string(ev.Action)).
		Bool("success", ev.Success).
		Int64("account_id", ev.AccountID).
		Str("username", ev.Username).
		Str("reason", ev.Reason).
		Str("ip", ev.IP).
		Msg("Audit event")

	// The request may already be finishing; sinks get their own deadline.
	base := context.WithoutCancel(ctx)
	for _, sink := range a.sinks {
		a.deliver(base, sink, ev)
	}
}

func (a *Auditor) deliver(ctx context.Context, sink AuditSink, ev model.AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordAuditSinkFailure(sink.Name())
			a.log.Error().Interface("panic", r).Str("sink", sink.Name()).Msg("Audit sink panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := sink.Record(ctx, ev); err != nil {
		metrics.RecordAuditSinkFailure(sink.Name())
		a.log.Warn().Err(err).Str("sink", sink.Name()).Str("action", string(ev.Action)).Msg("Audit sink failed")
	}
}
