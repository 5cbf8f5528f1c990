package ddt_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var ctx = context.Background()

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios de referencia
// ──────────────────────────────────────────────────────────────────────────────

// Caso A: confirmar una salida de 50 con 100 disponibles.
func TestConfirm_SalidaDescuentaStock(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 50))

	out, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.DdtStatusIssued, out.Status)
	require.Len(t, out.Movements, 1)
	m := out.Movements[0]
	assert.Equal(t, entity.MovementTypeOutput, m.Type)
	assert.True(t, m.Quantity.Equal(dec(-50)))
	assert.Equal(t, d.ID, *m.DdtID)
	assert.Regexp(t, `^MOV-20260310-\d{4}$`, m.Code)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(50)))
	f.assertLedgerMatches(t)
}

// Caso B: anular tras A revierte el asiento.
func TestCancel_RevierteSalida(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 50))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	out, err := f.svc.Cancel(ctx, actor, d.ID, "supplier issue")
	require.NoError(t, err)

	assert.Equal(t, entity.DdtStatusCancelled, out.Status)
	assert.Contains(t, out.Notes, "Cancelado: supplier issue")
	require.Len(t, out.Movements, 2)
	rev := out.Movements[1]
	assert.True(t, rev.Quantity.Equal(dec(50)))
	assert.Equal(t, entity.MovementTypeIntake, rev.Type)
	require.NotNil(t, rev.ReversesMovementID)
	assert.Equal(t, out.Movements[0].ID, *rev.ReversesMovementID)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(100)))
	f.assertLedgerMatches(t)

	ev := f.events.last()
	assert.Equal(t, notify.EventCancelled, ev.Type)
	assert.Equal(t, "supplier issue", ev.Reason)
}

// Caso C: stock insuficiente no deja rastro.
func TestConfirm_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 150))
	before := len(f.store.Movements())

	_, err := f.svc.Confirm(ctx, actor, d.ID)

	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.True(t, ise.Required.Equal(dec(150)))
	assert.True(t, ise.Available.Equal(dec(100)))
	assert.Equal(t, productX, ise.ProductID)
	assert.Equal(t, warehouseA, ise.WarehouseID)

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusDraft, got.Status)
	assert.Len(t, f.store.Movements(), before)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(100)))
}

// Caso D: entregar dos veces.
func TestDeliver_SegundaVezFalla(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 10))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	out, err := f.svc.Deliver(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusDelivered, out.Status)
	require.NotNil(t, out.DeliveredAt)
	assert.Equal(t, testNow, *out.DeliveredAt)

	_, err = f.svc.Deliver(ctx, actor, d.ID)
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "delivered", ite.Current)
	assert.Equal(t, "delivered", ite.Target)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(90)), "entregar no toca el libro")
}

// ──────────────────────────────────────────────────────────────────────────────
// Creación, edición y borrado
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_CodigoPorTipoYAño(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, outgoing(), item(productX, 1))
	b := f.create(t, outgoing(), item(productX, 1))
	c := f.create(t, header(entity.DdtKindIncoming, nil, ptr(warehouseA)), item(productX, 1))
	r := f.create(t, header(entity.DdtKindRentalOut, ptr(warehouseA), nil), item(productX, 1))

	assert.Equal(t, "DDT-OUT-2026-0001", a.Code)
	assert.Equal(t, "DDT-OUT-2026-0002", b.Code)
	assert.Equal(t, "DDT-IN-2026-0001", c.Code)
	assert.Equal(t, "DDT-RNO-2026-0001", r.Code)
	assert.Equal(t, entity.DdtStatusDraft, a.Status)
	assert.Equal(t, actor, a.CreatedBy)
	assert.Empty(t, a.Movements, "crear no genera asientos")
	assert.Equal(t, []notify.EventType{notify.EventCreated, notify.EventCreated, notify.EventCreated, notify.EventCreated}, f.events.types())
}

func TestCreate_Validacion(t *testing.T) {
	f := newFixture(t)

	// Caso 1: cabecera vacía y sin líneas.
	_, err := f.svc.Create(ctx, actor, ddt.HeaderInput{}, nil)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "document_number")
	assert.Contains(t, ve.Fields, "kind")
	assert.Contains(t, ve.Fields, "ddt_date")
	assert.Contains(t, ve.Fields, "warehouse")
	assert.Contains(t, ve.Fields, "items")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	// Caso 2: salida sin bodega origen.
	_, err = f.svc.Create(ctx, actor, header(entity.DdtKindOutgoing, nil, ptr(warehouseB)), []ddt.ItemInput{item(productX, 1)})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "from_warehouse_id")

	// Caso 3: traslado interno a la misma bodega.
	_, err = f.svc.Create(ctx, actor, header(entity.DdtKindInternal, ptr(warehouseA), ptr(warehouseA)), []ddt.ItemInput{item(productX, 1)})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "to_warehouse_id")

	// Caso 4: línea con cantidad cero y sin unidad.
	_, err = f.svc.Create(ctx, actor, outgoing(), []ddt.ItemInput{{ProductID: productX, Quantity: dec(0)}})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "items[0].quantity")
	assert.Contains(t, ve.Fields, "items[0].unit")

	// Caso 5: cantidad y costo fuera de NUMERIC(14,4).
	tiny := decimal.RequireFromString("0.00001")
	huge := decimal.RequireFromString("10000000000")
	_, err = f.svc.Create(ctx, actor, outgoing(), []ddt.ItemInput{
		{ProductID: productX, Quantity: tiny, Unit: "pz"},
		{ProductID: productX, Quantity: dec(1), Unit: "pz", UnitCost: &huge},
	})
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "items[0].quantity")
	assert.Contains(t, ve.Fields, "items[1].unit_cost")

	assert.Empty(t, f.events.types(), "una creación rechazada no publica eventos")
}

func TestCreate_LargosEnCaracteres(t *testing.T) {
	f := newFixture(t)

	// Caso 1: 100 caracteres acentuados (200 bytes) caben en document_number.
	h := outgoing()
	h.DocumentNumber = strings.Repeat("é", 100)
	h.CarrierName = strings.Repeat("ñ", 255)
	d, err := f.svc.Create(ctx, actor, h, []ddt.ItemInput{{ProductID: productX, Quantity: dec(1), Unit: "añoñoñoñoñoñoñoñoñoñ"}})
	require.NoError(t, err)
	assert.Equal(t, h.DocumentNumber, d.DocumentNumber)

	// Caso 2: un carácter más se rechaza.
	h.DocumentNumber = strings.Repeat("é", 101)
	_, err = f.svc.Create(ctx, actor, h, []ddt.ItemInput{item(productX, 1)})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "document_number")
}

func TestUpdate_SoloEnBorrador(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 5))

	h := outgoing()
	h.CarrierName = "Transportes Ruiz"
	h.DocumentNumber = "DN-002"
	out, err := f.svc.Update(ctx, actor, d.ID, h, []ddt.ItemInput{item(productX, 8), item(productX, 2)})
	require.NoError(t, err)
	assert.Equal(t, "Transportes Ruiz", out.CarrierName)
	require.Len(t, out.Items, 2)
	assert.True(t, out.TotalQuantity().Equal(dec(10)))

	ev := f.events.last()
	assert.Equal(t, notify.EventUpdated, ev.Type)
	assert.Contains(t, ev.Changes, "carrier_name")
	assert.Contains(t, ev.Changes, "document_number")
	assert.Equal(t, notify.Change{From: 1, To: 2}, ev.Changes["items"])

	// Caso 1: items nil conserva las líneas.
	out, err = f.svc.Update(ctx, actor, d.ID, h, nil)
	require.NoError(t, err)
	assert.Len(t, out.Items, 2)

	// Caso 2: el tipo no cambia.
	hk := header(entity.DdtKindRentalOut, ptr(warehouseA), nil)
	_, err = f.svc.Update(ctx, actor, d.ID, hk, nil)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "kind")

	// Caso 3: tras confirmar ya no se edita.
	_, err = f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, actor, d.ID, h, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestDelete_BorradoLogico(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, outgoing(), item(productX, 5))

	ok, err := f.svc.Delete(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, notify.EventDeleted, f.events.last().Type)
	require.NotNil(t, f.events.last().Ddt.DeletedAt)

	_, err = f.svc.Get(ctx, d.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Caso 1: borrar de nuevo.
	_, err = f.svc.Delete(ctx, actor, d.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Caso 2: el código no se reutiliza.
	next := f.create(t, outgoing(), item(productX, 1))
	assert.Equal(t, "DDT-OUT-2026-0002", next.Code)
}

func TestDelete_EmitidoNoSeBorra(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 10)
	d := f.create(t, outgoing(), item(productX, 5))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	ok, err := f.svc.Delete(ctx, actor, d.ID)
	assert.False(t, ok)
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "issued", ite.Current)
	assert.Equal(t, "deleted", ite.Target)
}

func TestGet_NoExiste(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(ctx, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = f.svc.Confirm(ctx, actor, 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// ──────────────────────────────────────────────────────────────────────────────
// Confirmación por tipo de documento
// ──────────────────────────────────────────────────────────────────────────────

func TestConfirm_InternoMueveEntreBodegas(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 30)
	d := f.create(t, header(entity.DdtKindInternal, ptr(warehouseA), ptr(warehouseB)), item(productX, 12))

	out, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	require.Len(t, out.Movements, 2)
	assert.Equal(t, warehouseA, out.Movements[0].WarehouseID)
	assert.True(t, out.Movements[0].Quantity.Equal(dec(-12)))
	assert.Equal(t, warehouseB, out.Movements[1].WarehouseID)
	assert.True(t, out.Movements[1].Quantity.Equal(dec(12)))

	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(18)))
	assert.True(t, f.store.Available(productX, warehouseB).Equal(dec(12)))
	f.assertLedgerMatches(t)

	// anular devuelve ambas bodegas a su estado previo
	_, err = f.svc.Cancel(ctx, actor, d.ID, "error de bodega")
	require.NoError(t, err)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(30)))
	assert.True(t, f.store.Available(productX, warehouseB).IsZero())
	f.assertLedgerMatches(t)
}

func TestConfirm_EntradaActualizaCostoPromedio(t *testing.T) {
	f := newFixture(t)
	cost1, cost2 := dec(10), dec(16)

	d1 := f.create(t, header(entity.DdtKindIncoming, nil, ptr(warehouseA)),
		ddt.ItemInput{ProductID: productX, Quantity: dec(10), Unit: "pz", UnitCost: &cost1})
	_, err := f.svc.Confirm(ctx, actor, d1.ID)
	require.NoError(t, err)

	d2 := f.create(t, header(entity.DdtKindIncoming, nil, ptr(warehouseA)),
		ddt.ItemInput{ProductID: productX, Quantity: dec(30), Unit: "pz", UnitCost: &cost2})
	_, err = f.svc.Confirm(ctx, actor, d2.ID)
	require.NoError(t, err)

	row := f.store.Row(entity.StockKey{ProductID: productX, WarehouseID: warehouseA})
	assert.True(t, row.QuantityAvailable.Equal(dec(40)))
	// (10*10 + 30*16) / 40 = 14.5
	assert.Equal(t, "14.5", row.AverageCost.String())
}

func TestConfirm_EntradaSinDestinoUsaOrigen(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, header(entity.DdtKindRentalReturn, ptr(warehouseB), nil), item(productX, 4))

	out, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	require.Len(t, out.Movements, 1)
	assert.Equal(t, entity.MovementTypeRentalReturn, out.Movements[0].Type)
	assert.True(t, f.store.Available(productX, warehouseB).Equal(dec(4)))
}

func TestConfirm_AlquilerRespetaReservas(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 10)
	_, err := f.inv.Reserve(ctx, entity.StockKey{ProductID: productX, WarehouseID: warehouseA}, dec(6))
	require.NoError(t, err)

	d := f.create(t, header(entity.DdtKindRentalOut, ptr(warehouseA), nil), item(productX, 5))
	_, err = f.svc.Confirm(ctx, actor, d.ID)

	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise), "el libre es 10-6=4")
	assert.True(t, ise.Available.Equal(dec(4)))
}

func TestConfirm_LineasRepetidasSeSuman(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 10)
	d := f.create(t, outgoing(), item(productX, 6), item(productX, 6))

	_, err := f.svc.Confirm(ctx, actor, d.ID)
	var ise *domain.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.True(t, ise.Required.Equal(dec(12)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Anulación, despacho y máquina de estados
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_DobleNoRevierteDosVeces(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 50))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, actor, d.ID, "primera")
	require.NoError(t, err)
	movs := len(f.store.Movements())

	_, err = f.svc.Cancel(ctx, actor, d.ID, "segunda")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.Len(t, f.store.Movements(), movs)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(100)))
}

func TestCancel_MotivoRequerido(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 10)
	d := f.create(t, outgoing(), item(productX, 5))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	movs := len(f.store.Movements())

	// Caso 1: motivo vacío es una transición inválida y no toca el libro.
	_, err = f.svc.Cancel(ctx, actor, d.ID, "   ")
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, string(entity.DdtStatusIssued), ite.Current)
	assert.Equal(t, string(entity.DdtStatusCancelled), ite.Target)
	assert.Equal(t, "motivo requerido", ite.Reason)
	assert.False(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Len(t, f.store.Movements(), movs)

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusIssued, got.Status)

	// Caso 2: el largo se cuenta en caracteres; 500 letras acentuadas son válidas.
	_, err = f.svc.Cancel(ctx, actor, d.ID, strings.Repeat("ñ", 501))
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "reason")

	out, err := f.svc.Cancel(ctx, actor, d.ID, strings.Repeat("ñ", 500))
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusCancelled, out.Status)
}

func TestCancel_BorradorNoSeAnula(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, outgoing(), item(productX, 5))

	_, err := f.svc.Cancel(ctx, actor, d.ID, "no aplica")
	var ite *domain.InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, "draft", ite.Current)
}

func TestShip_EnTransitoYAnulacion(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 20)
	d := f.create(t, outgoing(), item(productX, 5))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	out, err := f.svc.Ship(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusInTransit, out.Status)
	require.NotNil(t, out.TransportDate)

	out, err = f.svc.Cancel(ctx, actor, d.ID, "rechazado en destino")
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusCancelled, out.Status)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(20)))

	_, err = f.svc.Ship(ctx, actor, d.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestShip_ConservaFechaDeTransporte(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 20)
	h := outgoing()
	planned := testNow.AddDate(0, 0, 2)
	h.TransportDate = &planned
	d := f.create(t, h, item(productX, 5))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	out, err := f.svc.Ship(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, planned, *out.TransportDate)
}

func TestTransiciones_DesdeBorrador(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, outgoing(), item(productX, 5))

	_, err := f.svc.Ship(ctx, actor, d.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	_, err = f.svc.Deliver(ctx, actor, d.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia y reintentos
// ──────────────────────────────────────────────────────────────────────────────

// Dos confirmaciones que juntas superan el stock: exactamente una gana.
func TestConfirm_ConcurrenteSobreMismaFila(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d1 := f.create(t, outgoing(), item(productX, 60))
	d2 := f.create(t, outgoing(), item(productX, 60))

	var ok, insufficient atomic.Int32
	var g errgroup.Group
	for _, id := range []int64{d1.ID, d2.ID} {
		id := id
		g.Go(func() error {
			_, err := f.svc.Confirm(ctx, actor, id)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), insufficient.Load())
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(40)))
	f.assertLedgerMatches(t)
}

// Varias confirmaciones del mismo documento: un solo juego de asientos.
func TestConfirm_ConcurrenteMismoDocumento(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 10))
	before := len(f.store.Movements())

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := f.svc.Confirm(ctx, actor, d.ID)
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, domain.ErrInvalidTransition) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), ok.Load())
	assert.Len(t, f.store.Movements(), before+1)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(90)))
}

func TestConfirm_ReintentaConflicto(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	d := f.create(t, outgoing(), item(productX, 10))

	// Caso 1: un conflicto transitorio se reintenta y termina bien.
	f.store.FailNextCommits(1)
	runs := f.store.Runs()
	out, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusIssued, out.Status)
	assert.Equal(t, runs+2, f.store.Runs())
	assert.Len(t, out.Movements, 1)

	// Caso 2: conflictos persistentes agotan los intentos y no dejan cambios.
	d2 := f.create(t, outgoing(), item(productX, 10))
	f.store.FailNextCommits(10)
	_, err = f.svc.Confirm(ctx, actor, d2.ID)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	f.store.FailNextCommits(0)

	got, err := f.svc.Get(ctx, d2.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusDraft, got.Status)
	assert.True(t, f.store.Available(productX, warehouseA).Equal(dec(90)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Eventos
// ──────────────────────────────────────────────────────────────────────────────

func TestEventos_TrasElCommit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)

	// el listener consulta el almacén: dentro de la transacción se bloquearía
	var seen []string
	f.disp.Register("observer", notify.ListenerFunc(func(_ context.Context, ev notify.Event) {
		if ev.Type == notify.EventConfirmed {
			seen = append(seen, f.store.Available(productX, warehouseA).String())
		}
	}))
	d := f.create(t, outgoing(), item(productX, 30))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"70"}, seen)
	ev := f.events.last()
	assert.Equal(t, notify.EventConfirmed, ev.Type)
	assert.Equal(t, actor, ev.ActorID)
	require.NotNil(t, ev.Ddt)
	assert.Len(t, ev.Ddt.Movements, 1, "el evento lleva el agregado recargado")
}

func TestEventos_ListenerConPanicNoAfecta(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	after := &recorder{}
	f.disp.Register("panics", notify.ListenerFunc(func(context.Context, notify.Event) { panic("boom") }))
	f.disp.Register("after", after)

	d := f.create(t, outgoing(), item(productX, 30))
	out, err := f.svc.Confirm(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DdtStatusIssued, out.Status)
	assert.Equal(t, []notify.EventType{notify.EventCreated, notify.EventConfirmed}, after.types())
}

func TestEventos_NoSePublicaSiFalla(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, outgoing(), item(productX, 30))
	_, err := f.svc.Confirm(ctx, actor, d.ID)
	require.Error(t, err)
	assert.Equal(t, []notify.EventType{notify.EventCreated}, f.events.types())
}

// ──────────────────────────────────────────────────────────────────────────────
// Listado
// ──────────────────────────────────────────────────────────────────────────────

func TestList_Filtros(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouseA, 100)
	a := f.create(t, outgoing(), item(productX, 1))
	f.create(t, header(entity.DdtKindIncoming, nil, ptr(warehouseB)), item(productX, 1))
	c := f.create(t, outgoing(), item(productX, 1))
	_, err := f.svc.Confirm(ctx, actor, c.ID)
	require.NoError(t, err)

	kind := entity.DdtKindOutgoing
	list, total, err := f.svc.List(ctx, repository.DdtFilter{Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, list, 2)

	status := entity.DdtStatusIssued
	list, total, err = f.svc.List(ctx, repository.DdtFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)

	wh := warehouseB
	_, total, err = f.svc.List(ctx, repository.DdtFilter{WarehouseID: &wh})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	list, _, err = f.svc.List(ctx, repository.DdtFilter{Search: a.Code})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	list, total, err = f.svc.List(ctx, repository.DdtFilter{Limit: 1, SortBy: "code", SortDesc: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "DDT-OUT-2026-0002", list[0].Code)
}
