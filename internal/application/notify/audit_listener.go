package notify

import (
	"context"

	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// AuditListener deja una entrada de log estructurado por cada evento del ciclo de vida.
type AuditListener struct {
	log *logger.Logger
}

// NewAuditListener construye el listener.
func NewAuditListener(log *logger.Logger) *AuditListener {
	return &AuditListener{log: log}
}

// Handle implementa Listener.
func (l *AuditListener) Handle(_ context.Context, ev Event) {
	e := l.log.Info().
		Str("event", string(ev.Type)).
		Str("event_id", ev.ID.String()).
		Int64("actor_id", ev.ActorID).
		Time("occurred_at", ev.OccurredAt)
	if ev.Ddt != nil {
		e = e.Int64("ddt_id", ev.Ddt.ID).
			Str("code", ev.Ddt.Code).
			Str("kind", string(ev.Ddt.Kind)).
			Str("status", string(ev.Ddt.Status)).
			Int("items", len(ev.Ddt.Items)).
			Int("movements", len(ev.Ddt.Movements))
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	if len(ev.Changes) > 0 {
		fields := make([]string, 0, len(ev.Changes))
		for k := range ev.Changes {
			fields = append(fields, k)
		}
		e = e.Strs("changed", fields)
	}
	e.Msg("actividad DDT")
}
