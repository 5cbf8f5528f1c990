package ddt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// DdtCodeScope scope del contador de códigos de documento (se concatena el tipo).
const DdtCodeScope = "ddt"

// maxCodeSkips códigos ya ocupados que se saltan antes de abandonar.
const maxCodeSkips = 20

// Publisher recibe los eventos tras el commit.
type Publisher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Service orquesta el ciclo de vida del documento de transporte. Cada operación es una transacción;
// el libro de movimientos y las existencias se actualizan en la misma transacción que el cambio de estado.
type Service struct {
	txRunner inventory.TxRunner
	events   Publisher
	retry    inventory.RetryPolicy
	log      *logger.Logger
	now      func() time.Time
}

// Option configura el Service.
type Option func(*Service)

// WithPublisher registra el destino de eventos.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

// WithRetryPolicy reemplaza la política de reintentos.
func WithRetryPolicy(p inventory.RetryPolicy) Option { return func(s *Service) { s.retry = p } }

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService construye el orquestador.
func NewService(txRunner inventory.TxRunner, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		txRunner: txRunner,
		retry:    inventory.DefaultRetryPolicy(),
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create valida y persiste un documento en borrador con código generado. Sin efecto en el libro.
func (s *Service) Create(ctx context.Context, actorID int64, h HeaderInput, items []ItemInput) (*entity.Ddt, error) {
	ve := &domain.ValidationError{}
	validateHeader(h, ve)
	validateItems(items, ve)
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	var out *entity.Ddt
	err := s.retry.Do(ctx, s.log, "ddt.create", func() error {
		var err error
		for attempt := 0; attempt < 2; attempt++ {
			out, err = s.createOnce(ctx, actorID, h, items)
			if !errors.Is(err, domain.ErrDuplicate) {
				return err
			}
			s.log.Warn().Err(err).Msg("código de DDT duplicado, reintentando")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("ddt_id", out.ID).Str("code", out.Code).Str("kind", string(out.Kind)).Msg("DDT creado")
	s.publish(ctx, notify.NewEvent(notify.EventCreated, out, actorID, out.CreatedAt))
	return out, nil
}

func (s *Service) createOnce(ctx context.Context, actorID int64, h HeaderInput, items []ItemInput) (*entity.Ddt, error) {
	var out *entity.Ddt
	err := s.txRunner.Run(ctx, func(tx inventory.Repos) error {
		now := s.now()
		code, err := s.nextCode(ctx, tx, h.Kind, now)
		if err != nil {
			return err
		}
		d := &entity.Ddt{
			Code:      code,
			Kind:      h.Kind,
			Status:    entity.DdtStatusDraft,
			CreatedBy: actorID,
			CreatedAt: now,
			UpdatedAt: now,
			Items:     buildItems(items),
		}
		applyHeader(d, h)
		if err := tx.Ddts.Create(ctx, d); err != nil {
			return fmt.Errorf("crear DDT: %w", err)
		}
		out, err = load(ctx, tx, d.ID)
		return err
	})
	return out, err
}

// nextCode DDT-<TIPO>-<AAAA>-<NNNN> desde el contador del almacén; salta códigos ya ocupados.
func (s *Service) nextCode(ctx context.Context, tx inventory.Repos, kind entity.DdtKind, at time.Time) (string, error) {
	year := at.Format("2006")
	scope := DdtCodeScope + ":" + string(kind)
	for i := 0; i < maxCodeSkips; i++ {
		n, err := tx.Codes.Next(ctx, scope, year)
		if err != nil {
			return "", fmt.Errorf("secuencia de DDT: %w", err)
		}
		code := fmt.Sprintf("DDT-%s-%s-%04d", kind.CodePrefix(), year, n)
		exists, err := tx.Ddts.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("secuencia de DDT %s agotada: %w", scope, domain.ErrDuplicate)
}

// Update reemplaza la cabecera y, si items no es nil, las líneas. Solo en borrador; el tipo no cambia.
func (s *Service) Update(ctx context.Context, actorID, id int64, h HeaderInput, items []ItemInput) (*entity.Ddt, error) {
	ve := &domain.ValidationError{}
	validateHeader(h, ve)
	if items != nil {
		validateItems(items, ve)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "ddt.update", notify.EventUpdated, actorID, id, func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, ev *notify.Event) error {
		if st := d.CurrentStatus(); st != entity.DdtStatusDraft {
			return &domain.InvalidTransitionError{Current: string(st), Target: string(entity.DdtStatusDraft), Reason: "solo se edita en borrador"}
		}
		if h.Kind != d.Kind {
			return domain.NewValidationError("kind", "el tipo no se puede cambiar")
		}
		changes := applyHeader(d, h)
		if items != nil {
			if err := tx.Ddts.ReplaceItems(ctx, d.ID, buildItems(items)); err != nil {
				return fmt.Errorf("reemplazar líneas: %w", err)
			}
			changes["items"] = notify.Change{From: len(d.Items), To: len(items)}
		}
		d.UpdatedAt = s.now()
		if err := tx.Ddts.Update(ctx, d); err != nil {
			return fmt.Errorf("actualizar DDT: %w", err)
		}
		ev.Changes = changes
		return nil
	})
}

// Confirm pasa de draft a issued: bloquea el documento y las filas de inventario en orden, verifica
// disponibilidad para los tipos que descuentan y registra los asientos.
func (s *Service) Confirm(ctx context.Context, actorID, id int64) (*entity.Ddt, error) {
	return s.mutate(ctx, "ddt.confirm", notify.EventConfirmed, actorID, id, func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, _ *notify.Event) error {
		if err := d.CheckTransition(entity.DdtStatusIssued); err != nil {
			return err
		}
		entries, err := domaininv.PlanMovements(d)
		if err != nil {
			return err
		}
		rows, err := inventory.LockRows(ctx, tx, domaininv.LockKeys(entries))
		if err != nil {
			return err
		}
		if d.Kind.DecrementsSource() {
			if err := domaininv.CheckAvailability(rows, domaininv.Requirements(entries)); err != nil {
				return err
			}
		}
		now := s.now()
		d.Status = entity.DdtStatusIssued
		d.UpdatedAt = now
		if err := tx.Ddts.Update(ctx, d); err != nil {
			return fmt.Errorf("actualizar DDT: %w", err)
		}
		ddtID := d.ID
		_, err = inventory.Post(ctx, tx, rows, entries, inventory.PostMeta{
			UserID: actorID,
			DdtID:  &ddtID,
			Date:   now,
			Notes:  "DDT " + d.Code,
		})
		return err
	})
}

// Cancel anula un documento emitido o en tránsito revirtiendo cada asiento que aún no tenga reverso.
func (s *Service) Cancel(ctx context.Context, actorID, id int64, reason string) (*entity.Ddt, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReason {
		return nil, domain.NewValidationError("reason", "máximo 500 caracteres")
	}
	return s.mutate(ctx, "ddt.cancel", notify.EventCancelled, actorID, id, func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, ev *notify.Event) error {
		if err := d.CheckTransition(entity.DdtStatusCancelled); err != nil {
			return err
		}
		if reason == "" {
			return &domain.InvalidTransitionError{
				Current: string(d.CurrentStatus()),
				Target:  string(entity.DdtStatusCancelled),
				Reason:  "motivo requerido",
			}
		}
		existing, err := tx.Movements.ListByDdt(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("listar movimientos: %w", err)
		}
		now := s.now()
		if entries := domaininv.PlanReversals(existing); len(entries) > 0 {
			rows, err := inventory.LockRows(ctx, tx, domaininv.LockKeys(entries))
			if err != nil {
				return err
			}
			ddtID := d.ID
			if _, err := inventory.Post(ctx, tx, rows, entries, inventory.PostMeta{
				UserID: actorID,
				DdtID:  &ddtID,
				Date:   now,
				Notes:  "Reverso DDT " + d.Code,
			}); err != nil {
				return err
			}
		}
		d.Status = entity.DdtStatusCancelled
		d.UpdatedAt = now
		d.AppendNote("Cancelado: " + reason)
		if err := tx.Ddts.Update(ctx, d); err != nil {
			return fmt.Errorf("actualizar DDT: %w", err)
		}
		ev.Reason = reason
		return nil
	})
}

// Ship pasa de issued a in_transit. Fija la fecha de transporte si no estaba.
func (s *Service) Ship(ctx context.Context, actorID, id int64) (*entity.Ddt, error) {
	return s.mutate(ctx, "ddt.ship", notify.EventShipped, actorID, id, func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, _ *notify.Event) error {
		if err := d.CheckTransition(entity.DdtStatusInTransit); err != nil {
			return err
		}
		now := s.now()
		d.Status = entity.DdtStatusInTransit
		if d.TransportDate == nil {
			d.TransportDate = &now
		}
		d.UpdatedAt = now
		if err := tx.Ddts.Update(ctx, d); err != nil {
			return fmt.Errorf("actualizar DDT: %w", err)
		}
		return nil
	})
}

// Deliver marca la entrega. Sin efecto en el libro.
func (s *Service) Deliver(ctx context.Context, actorID, id int64) (*entity.Ddt, error) {
	return s.mutate(ctx, "ddt.deliver", notify.EventDelivered, actorID, id, func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, _ *notify.Event) error {
		if err := d.CheckTransition(entity.DdtStatusDelivered); err != nil {
			return err
		}
		now := s.now()
		d.Status = entity.DdtStatusDelivered
		d.DeliveredAt = &now
		d.UpdatedAt = now
		if err := tx.Ddts.Update(ctx, d); err != nil {
			return fmt.Errorf("actualizar DDT: %w", err)
		}
		return nil
	})
}

// Delete borrado lógico de un borrador.
func (s *Service) Delete(ctx context.Context, actorID, id int64) (bool, error) {
	var deleted *entity.Ddt
	err := s.retry.Do(ctx, s.log, "ddt.delete", func() error {
		return s.txRunner.Run(ctx, func(tx inventory.Repos) error {
			d, err := tx.Ddts.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if d == nil {
				return domain.ErrNotFound
			}
			if err := d.CheckTransition(entity.DdtStatusDeleted); err != nil {
				return err
			}
			now := s.now()
			if err := tx.Ddts.SoftDelete(ctx, id, now); err != nil {
				return fmt.Errorf("borrar DDT: %w", err)
			}
			d.DeletedAt = &now
			d.UpdatedAt = now
			deleted = d
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	s.log.Info().Int64("ddt_id", id).Str("code", deleted.Code).Msg("DDT borrado")
	s.publish(ctx, notify.NewEvent(notify.EventDeleted, deleted, actorID, *deleted.DeletedAt))
	return true, nil
}

// Get documento con líneas y movimientos.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Ddt, error) {
	var out *entity.Ddt
	err := s.txRunner.Run(ctx, func(tx inventory.Repos) error {
		var err error
		out, err = load(ctx, tx, id)
		return err
	})
	return out, err
}

// List documentos filtrados y total sin paginar.
func (s *Service) List(ctx context.Context, f repository.DdtFilter) ([]*entity.Ddt, int, error) {
	var (
		list  []*entity.Ddt
		total int
	)
	err := s.txRunner.Run(ctx, func(tx inventory.Repos) error {
		var err error
		list, total, err = tx.Ddts.List(ctx, f)
		return err
	})
	return list, total, err
}

type mutation func(ctx context.Context, tx inventory.Repos, d *entity.Ddt, ev *notify.Event) error

// mutate bloquea el documento, aplica fn, recarga el agregado dentro de la transacción y publica tras el commit.
func (s *Service) mutate(ctx context.Context, op string, evType notify.EventType, actorID, id int64, fn mutation) (*entity.Ddt, error) {
	var ev notify.Event
	err := s.retry.Do(ctx, s.log, op, func() error {
		ev = notify.Event{}
		return s.txRunner.Run(ctx, func(tx inventory.Repos) error {
			d, err := tx.Ddts.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if d == nil {
				return domain.ErrNotFound
			}
			if err := fn(ctx, tx, d, &ev); err != nil {
				return err
			}
			reloaded, err := load(ctx, tx, id)
			if err != nil {
				return err
			}
			reason, changes := ev.Reason, ev.Changes
			ev = notify.NewEvent(evType, reloaded, actorID, reloaded.UpdatedAt)
			ev.Reason, ev.Changes = reason, changes
			return nil
		})
	})
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Int64("ddt_id", id).Msg("operación DDT rechazada")
		return nil, err
	}
	s.log.Info().Str("op", op).Int64("ddt_id", id).Str("code", ev.Ddt.Code).Str("status", string(ev.Ddt.Status)).Msg("DDT actualizado")
	s.publish(ctx, ev)
	return ev.Ddt, nil
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(context.WithoutCancel(ctx), ev)
}

func load(ctx context.Context, tx inventory.Repos, id int64) (*entity.Ddt, error) {
	d, err := tx.Ddts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	movs, err := tx.Movements.ListByDdt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listar movimientos: %w", err)
	}
	d.Movements = movs
	return d, nil
}
