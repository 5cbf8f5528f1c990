package dto

import (
	"time"

	"github.com/jhoicas/ddt-ledger/internal/application/notify"
)

// ChangeMessage valor anterior y nuevo de un campo.
type ChangeMessage struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// EventMessage evento del ciclo de vida publicado hacia fuera.
type EventMessage struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	ActorID    int64                    `json:"actor_id"`
	OccurredAt time.Time                `json:"occurred_at"`
	Reason     string                   `json:"reason,omitempty"`
	Changes    map[string]ChangeMessage `json:"changes,omitempty"`
	Ddt        *DdtResponse             `json:"ddt,omitempty"`
}

// FromEvent mapea un evento a su mensaje.
func FromEvent(ev notify.Event) EventMessage {
	msg := EventMessage{
		ID:         ev.ID.String(),
		Type:       string(ev.Type),
		ActorID:    ev.ActorID,
		OccurredAt: ev.OccurredAt,
		Reason:     ev.Reason,
	}
	if len(ev.Changes) > 0 {
		msg.Changes = make(map[string]ChangeMessage, len(ev.Changes))
		for k, c := range ev.Changes {
			msg.Changes[k] = ChangeMessage{From: c.From, To: c.To}
		}
	}
	if ev.Ddt != nil {
		d := FromDdt(ev.Ddt)
		msg.Ddt = &d
	}
	return msg
}
