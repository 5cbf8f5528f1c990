package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// Dispatcher entrega cada evento de forma síncrona a los listeners registrados, en orden de registro.
// Un panic de un listener se recupera y se registra; los demás listeners siguen recibiendo el evento.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []namedListener
	log       *logger.Logger
}

type namedListener struct {
	name string
	l    Listener
}

// NewDispatcher construye el dispatcher.
func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Register agrega un listener con nombre (para logs).
func (d *Dispatcher) Register(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, namedListener{name: name, l: l})
}

// Dispatch entrega ev a todos los listeners.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	d.mu.RLock()
	ls := append([]namedListener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, nl := range ls {
		d.safeHandle(ctx, nl, ev)
	}
}

func (d *Dispatcher) safeHandle(ctx context.Context, nl namedListener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("listener", nl.name).
				Str("event", string(ev.Type)).
				Str("event_id", ev.ID.String()).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("listener falló")
		}
	}()
	nl.l.Handle(ctx, ev)
}
