package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// EventType tipo de evento del ciclo de vida del documento.
type EventType string

const (
	EventCreated   EventType = "ddt.created"
	EventUpdated   EventType = "ddt.updated"
	EventConfirmed EventType = "ddt.confirmed"
	EventShipped   EventType = "ddt.shipped"
	EventDelivered EventType = "ddt.delivered"
	EventCancelled EventType = "ddt.cancelled"
	EventDeleted   EventType = "ddt.deleted"
)

// Change valor anterior y nuevo de un campo modificado.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Event notificación posterior al commit. Ddt es el agregado recargado con líneas y movimientos.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       EventType         `json:"type"`
	Ddt        *entity.Ddt       `json:"ddt"`
	ActorID    int64             `json:"actor_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Reason     string            `json:"reason,omitempty"`
	Changes    map[string]Change `json:"changes,omitempty"`
}

// NewEvent construye un evento con ID nuevo.
func NewEvent(t EventType, d *entity.Ddt, actorID int64, at time.Time) Event {
	return Event{ID: uuid.New(), Type: t, Ddt: d, ActorID: actorID, OccurredAt: at}
}

// Listener consumidor de eventos. No puede afectar la operación ya confirmada; registra sus propios errores.
type Listener interface {
	Handle(ctx context.Context, ev Event)
}

// ListenerFunc adapta una función a Listener.
type ListenerFunc func(ctx context.Context, ev Event)

// Handle implementa Listener.
func (f ListenerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }
