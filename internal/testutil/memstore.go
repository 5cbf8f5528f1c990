// Package testutil almacén transaccional en memoria para tests de servicios.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store implementa inventory.TxRunner sobre un estado en memoria. Las transacciones se serializan con un
// único mutex; cada Run trabaja sobre una copia que solo se publica si fn termina sin error.
type Store struct {
	mu    sync.Mutex
	state *state

	failMu      sync.Mutex
	failCommits int
	runs        int
}

type siteKey struct{ site, product int64 }

type state struct {
	ddts      map[int64]*entity.Ddt
	movements []*entity.StockMovement
	inventory map[entity.StockKey]*entity.Inventory
	codes     map[string]int64
	sites     map[siteKey]*entity.SiteMaterial
	nextDdt   int64
	nextItem  int64
	nextMov   int64
	// movSeq compartido entre copias: imita nextval, que no se revierte.
	movSeq *int64
}

// NewStore almacén vacío.
func NewStore() *Store {
	return &Store{state: &state{
		ddts:      make(map[int64]*entity.Ddt),
		inventory: make(map[entity.StockKey]*entity.Inventory),
		codes:     make(map[string]int64),
		sites:     make(map[siteKey]*entity.SiteMaterial),
		movSeq:    new(int64),
	}}
}

// FailNextCommits hace que los próximos n commits fallen con ConcurrencyError (y se reviertan).
func (s *Store) FailNextCommits(n int) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failCommits = n
}

// Runs cantidad de transacciones iniciadas.
func (s *Store) Runs() int {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.runs
}

// Run implementa inventory.TxRunner.
func (s *Store) Run(ctx context.Context, fn func(tx inventory.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failMu.Lock()
	s.runs++
	s.failMu.Unlock()

	work := s.state.clone()
	if err := fn(work.repos()); err != nil {
		return err
	}

	s.failMu.Lock()
	fail := s.failCommits > 0
	if fail {
		s.failCommits--
	}
	s.failMu.Unlock()
	if fail {
		return &domain.ConcurrencyError{Op: "commit transaction", Err: fmt.Errorf("serialization failure (simulado)")}
	}
	s.state = work
	return nil
}

// SetInventory escribe una fila directamente, sin pasar por el libro.
func (s *Store) SetInventory(row entity.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := row
	s.state.inventory[row.Key()] = &cp
}

// Row fila confirmada (en cero si no existe).
func (s *Store) Row(key entity.StockKey) entity.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.state.inventory[key]; ok {
		return *r
	}
	return *entity.NewInventory(key)
}

// Available disponible confirmado de la clave.
func (s *Store) Available(productID, warehouseID int64) decimal.Decimal {
	return s.Row(entity.StockKey{ProductID: productID, WarehouseID: warehouseID}).QuantityAvailable
}

// Movements copia de todos los asientos confirmados, en orden de inserción.
func (s *Store) Movements() []entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.StockMovement, 0, len(s.state.movements))
	for _, m := range s.state.movements {
		out = append(out, *m)
	}
	return out
}

// LedgerSum suma del libro para la clave.
func (s *Store) LedgerSum(productID, warehouseID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range s.Movements() {
		if m.ProductID == productID && m.WarehouseID == warehouseID {
			sum = sum.Add(m.Quantity)
		}
	}
	return sum
}

// SiteMaterial fila de materiales de obra; nil si no existe.
func (s *Store) SiteMaterial(siteID, productID int64) *entity.SiteMaterial {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.sites[siteKey{siteID, productID}]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

func (st *state) clone() *state {
	cp := &state{
		ddts:      make(map[int64]*entity.Ddt, len(st.ddts)),
		movements: append([]*entity.StockMovement(nil), st.movements...),
		inventory: make(map[entity.StockKey]*entity.Inventory, len(st.inventory)),
		codes:     make(map[string]int64, len(st.codes)),
		sites:     make(map[siteKey]*entity.SiteMaterial, len(st.sites)),
		nextDdt:   st.nextDdt,
		nextItem:  st.nextItem,
		nextMov:   st.nextMov,
		movSeq:    st.movSeq,
	}
	for id, d := range st.ddts {
		cp.ddts[id] = copyDdt(d)
	}
	for k, r := range st.inventory {
		row := *r
		cp.inventory[k] = &row
	}
	for k, v := range st.codes {
		cp.codes[k] = v
	}
	for k, m := range st.sites {
		sm := *m
		cp.sites[k] = &sm
	}
	return cp
}

func (st *state) repos() inventory.Repos {
	return inventory.Repos{
		Ddts:          ddtRepo{st},
		Movements:     movementRepo{st},
		Inventory:     inventoryRepo{st},
		Codes:         codeRepo{st},
		SiteMaterials: siteRepo{st},
	}
}

func copyDdt(d *entity.Ddt) *entity.Ddt {
	cp := *d
	cp.Items = append([]entity.DdtItem(nil), d.Items...)
	cp.Movements = nil
	return &cp
}

// ───────────────────────────── ddts ─────────────────────────────

type ddtRepo struct{ st *state }

func (r ddtRepo) Create(_ context.Context, d *entity.Ddt) error {
	for _, o := range r.st.ddts {
		if o.Code == d.Code {
			return fmt.Errorf("insert ddt: %w", domain.ErrDuplicate)
		}
	}
	r.st.nextDdt++
	d.ID = r.st.nextDdt
	r.assignItems(d.ID, d.Items)
	r.st.ddts[d.ID] = copyDdt(d)
	return nil
}

func (r ddtRepo) assignItems(ddtID int64, items []entity.DdtItem) {
	for i := range items {
		r.st.nextItem++
		items[i].ID = r.st.nextItem
		items[i].DdtID = ddtID
	}
}

func (r ddtRepo) Update(_ context.Context, d *entity.Ddt) error {
	cur, ok := r.st.ddts[d.ID]
	if !ok || cur.DeletedAt != nil {
		return domain.ErrNotFound
	}
	cp := copyDdt(d)
	cp.Items = cur.Items
	r.st.ddts[d.ID] = cp
	return nil
}

func (r ddtRepo) CodeExists(_ context.Context, code string) (bool, error) {
	for _, d := range r.st.ddts {
		if d.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r ddtRepo) ReplaceItems(_ context.Context, ddtID int64, items []entity.DdtItem) error {
	cur, ok := r.st.ddts[ddtID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := append([]entity.DdtItem(nil), items...)
	r.assignItems(ddtID, cp)
	cur.Items = cp
	return nil
}

func (r ddtRepo) GetByID(_ context.Context, id int64) (*entity.Ddt, error) {
	d, ok := r.st.ddts[id]
	if !ok || d.DeletedAt != nil {
		return nil, nil
	}
	return copyDdt(d), nil
}

func (r ddtRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Ddt, error) {
	return r.GetByID(ctx, id)
}

func (r ddtRepo) SoftDelete(_ context.Context, id int64, at time.Time) error {
	d, ok := r.st.ddts[id]
	if !ok || d.DeletedAt != nil {
		return domain.ErrNotFound
	}
	d.DeletedAt = &at
	d.UpdatedAt = at
	return nil
}

func (r ddtRepo) List(_ context.Context, f repository.DdtFilter) ([]*entity.Ddt, int, error) {
	var out []*entity.Ddt
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, d := range r.st.ddts {
		switch {
		case d.DeletedAt != nil,
			f.Kind != nil && d.Kind != *f.Kind,
			f.Status != nil && d.Status != *f.Status,
			f.WarehouseID != nil && !eqID(d.FromWarehouseID, *f.WarehouseID) && !eqID(d.ToWarehouseID, *f.WarehouseID),
			f.SiteID != nil && !eqID(d.SiteID, *f.SiteID),
			f.SupplierID != nil && !eqID(d.SupplierID, *f.SupplierID),
			f.CustomerID != nil && !eqID(d.CustomerID, *f.CustomerID),
			f.DateFrom != nil && d.DdtDate.Before(*f.DateFrom),
			f.DateTo != nil && d.DdtDate.After(*f.DateTo),
			search != "" && !strings.Contains(strings.ToLower(d.Code), search) && !strings.Contains(strings.ToLower(d.DocumentNumber), search):
			continue
		}
		out = append(out, copyDdt(d))
	}
	less := func(a, b *entity.Ddt) bool {
		switch f.SortBy {
		case "code":
			if a.Code != b.Code {
				return a.Code < b.Code
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if !a.DdtDate.Equal(b.DdtDate) {
				return a.DdtDate.Before(b.DdtDate)
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(out, func(i, j int) bool {
		if f.SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	total := len(out)
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	return paginate(out, limit, f.Offset), total, nil
}

// ───────────────────────────── movimientos ─────────────────────────────

type movementRepo struct{ st *state }

func (r movementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	for _, o := range r.st.movements {
		if o.Code == m.Code {
			return fmt.Errorf("insert movement: %w", domain.ErrDuplicate)
		}
		if m.ReversesMovementID != nil && o.ReversesMovementID != nil && *o.ReversesMovementID == *m.ReversesMovementID {
			return fmt.Errorf("insert movement: %w", domain.ErrDuplicate)
		}
	}
	if m.Quantity.IsZero() {
		return &domain.PersistenceError{Op: "insert movement", Err: fmt.Errorf("quantity <> 0")}
	}
	r.st.nextMov++
	m.ID = r.st.nextMov
	m.CreatedAt = m.MovementDate
	cp := *m
	r.st.movements = append(r.st.movements, &cp)
	return nil
}

func (r movementRepo) ListByDdt(_ context.Context, ddtID int64) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.st.movements {
		if m.DdtID != nil && *m.DdtID == ddtID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		m := r.st.movements[i]
		switch {
		case f.ProductID != nil && m.ProductID != *f.ProductID,
			f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID,
			f.DdtID != nil && !eqID(m.DdtID, *f.DdtID),
			f.Type != nil && m.Type != *f.Type,
			f.From != nil && m.MovementDate.Before(*f.From),
			f.To != nil && m.MovementDate.After(*f.To):
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	return paginate(out, limit, f.Offset), nil
}

func (r movementRepo) Balances(_ context.Context, key *entity.StockKey) ([]entity.LedgerBalance, error) {
	sums := make(map[entity.StockKey]decimal.Decimal)
	for _, m := range r.st.movements {
		if key != nil && m.Key() != *key {
			continue
		}
		sums[m.Key()] = sums[m.Key()].Add(m.Quantity)
	}
	out := make([]entity.LedgerBalance, 0, len(sums))
	for k, q := range sums {
		out = append(out, entity.LedgerBalance{StockKey: k, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockKey.Less(out[j].StockKey) })
	return out, nil
}

// ───────────────────────────── inventario ─────────────────────────────

type inventoryRepo struct{ st *state }

func (r inventoryRepo) Get(_ context.Context, key entity.StockKey) (*entity.Inventory, error) {
	if row, ok := r.st.inventory[key]; ok {
		cp := *row
		return &cp, nil
	}
	return entity.NewInventory(key), nil
}

func (r inventoryRepo) LockForUpdate(_ context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Inventory, error) {
	out := make(map[entity.StockKey]*entity.Inventory, len(keys))
	for _, k := range keys {
		row, ok := r.st.inventory[k]
		if !ok {
			row = entity.NewInventory(k)
			r.st.inventory[k] = row
		}
		cp := *row
		out[k] = &cp
	}
	return out, nil
}

func (r inventoryRepo) Save(_ context.Context, inv *entity.Inventory) error {
	if inv.QuantityAvailable.IsNegative() || inv.QuantityReserved.IsNegative() {
		return &domain.PersistenceError{Op: "update inventory", Err: fmt.Errorf("check constraint violated")}
	}
	cp := *inv
	r.st.inventory[inv.Key()] = &cp
	return nil
}

func (r inventoryRepo) List(_ context.Context, f repository.InventoryFilter) ([]*entity.Inventory, error) {
	var out []*entity.Inventory
	for _, row := range r.st.inventory {
		switch {
		case f.ProductID != nil && row.ProductID != *f.ProductID,
			f.WarehouseID != nil && row.WarehouseID != *f.WarehouseID,
			f.LowStock && !(row.MinimumStock.IsPositive() && row.IsLowStock()):
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	if f.Limit > 0 {
		out = paginate(out, f.Limit, f.Offset)
	}
	return out, nil
}

// ───────────────────────────── secuencias y obra ─────────────────────────────

type codeRepo struct{ st *state }

func (r codeRepo) Next(_ context.Context, scope, period string) (int64, error) {
	k := scope + "|" + period
	r.st.codes[k]++
	return r.st.codes[k], nil
}

func (r codeRepo) NextMovement(_ context.Context) (int64, error) {
	*r.st.movSeq++
	return *r.st.movSeq, nil
}

type siteRepo struct{ st *state }

func (r siteRepo) AddDelivered(_ context.Context, m *entity.SiteMaterial) error {
	k := siteKey{m.SiteID, m.ProductID}
	cur, ok := r.st.sites[k]
	if !ok {
		cp := *m
		r.st.sites[k] = &cp
		return nil
	}
	cur.QuantityDelivered = cur.QuantityDelivered.Add(m.QuantityDelivered)
	cur.Unit = m.Unit
	cur.LastDdtID = m.LastDdtID
	cur.UpdatedAt = m.UpdatedAt
	return nil
}

func (r siteRepo) ListBySite(_ context.Context, siteID int64) ([]*entity.SiteMaterial, error) {
	var out []*entity.SiteMaterial
	for k, m := range r.st.sites {
		if k.site == siteID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func eqID(p *int64, v int64) bool { return p != nil && *p == v }

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end]
}
