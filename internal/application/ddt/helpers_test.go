package ddt_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/testutil"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

const (
	actor      = int64(7)
	productX   = int64(100)
	productY   = int64(101)
	warehouseA = int64(1)
	warehouseB = int64(2)
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// recorder listener que guarda los eventos recibidos.
type recorder struct {
	mu  sync.Mutex
	evs []notify.Event
}

func (r *recorder) Handle(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, 0, len(r.evs))
	for _, ev := range r.evs {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evs[len(r.evs)-1]
}

type fixture struct {
	store  *testutil.Store
	svc    *ddt.Service
	inv    *inventory.Service
	disp   *notify.Dispatcher
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	store := testutil.NewStore()
	disp := notify.NewDispatcher(log)
	rec := &recorder{}
	disp.Register("recorder", rec)
	retry := inventory.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	clock := func() time.Time { return testNow }
	return &fixture{
		store:  store,
		svc:    ddt.NewService(store, log, ddt.WithPublisher(disp), ddt.WithRetryPolicy(retry), ddt.WithClock(clock)),
		inv:    inventory.NewService(store, log, inventory.WithRetryPolicy(retry), inventory.WithClock(clock)),
		disp:   disp,
		events: rec,
	}
}

// seed carga stock inicial vía ajuste para que el libro y las existencias coincidan.
func (f *fixture) seed(t *testing.T, productID, warehouseID int64, qty int64) {
	t.Helper()
	_, err := f.inv.Adjust(context.Background(), inventory.AdjustInput{
		UserID: actor, ProductID: productID, WarehouseID: warehouseID, Quantity: decimal.NewFromInt(qty), Notes: "stock inicial",
	})
	require.NoError(t, err)
}

func (f *fixture) create(t *testing.T, h ddt.HeaderInput, items ...ddt.ItemInput) *entity.Ddt {
	t.Helper()
	d, err := f.svc.Create(context.Background(), actor, h, items)
	require.NoError(t, err)
	return d
}

func ptr(v int64) *int64 { return &v }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func header(kind entity.DdtKind, from, to *int64) ddt.HeaderInput {
	return ddt.HeaderInput{
		DocumentNumber:  "DN-001",
		Kind:            kind,
		FromWarehouseID: from,
		ToWarehouseID:   to,
		DdtDate:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func item(productID, qty int64) ddt.ItemInput {
	return ddt.ItemInput{ProductID: productID, Quantity: dec(qty), Unit: "pz"}
}

func outgoing() ddt.HeaderInput {
	return header(entity.DdtKindOutgoing, ptr(warehouseA), nil)
}

// assertLedgerMatches verifica que cada fila coincida con la suma del libro.
func (f *fixture) assertLedgerMatches(t *testing.T) {
	t.Helper()
	drifts, err := f.inv.Verify(context.Background())
	require.NoError(t, err)
	require.Empty(t, drifts, "las existencias deben coincidir con la suma del libro")
}
