package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo libro de movimientos sobre PostgreSQL. Solo INSERT; la tabla rechaza UPDATE/DELETE por trigger.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

const movementColumns = `id, code, product_id, warehouse_id, type, quantity, unit_cost, movement_date,
	user_id, ddt_id, reverses_movement_id, notes, created_at`

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	var typ string
	if err := row.Scan(&m.ID, &m.Code, &m.ProductID, &m.WarehouseID, &typ, &m.Quantity, &m.UnitCost,
		&m.MovementDate, &m.UserID, &m.DdtID, &m.ReversesMovementID, &m.Notes, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = entity.MovementType(typ)
	return &m, nil
}

// Create inserta el asiento. El índice único sobre reverses_movement_id impide un segundo reverso.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (code, product_id, warehouse_id, type, quantity, unit_cost, movement_date,
			user_id, ddt_id, reverses_movement_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		m.Code, m.ProductID, m.WarehouseID, string(m.Type), m.Quantity, m.UnitCost, m.MovementDate,
		m.UserID, m.DdtID, m.ReversesMovementID, m.Notes,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return classify("insert stock movement", err)
	}
	return nil
}

// ListByDdt asientos del documento en orden de inserción.
func (r *StockMovementRepo) ListByDdt(ctx context.Context, ddtID int64) ([]*entity.StockMovement, error) {
	return r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE ddt_id = $1 ORDER BY id`, ddtID)
}

// List asientos filtrados, más recientes primero.
func (r *StockMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ProductID != nil {
		add("product_id = $%d", *f.ProductID)
	}
	if f.WarehouseID != nil {
		add("warehouse_id = $%d", *f.WarehouseID)
	}
	if f.DdtID != nil {
		add("ddt_id = $%d", *f.DdtID)
	}
	if f.Type != nil {
		add("type = $%d", string(*f.Type))
	}
	if f.From != nil {
		add("movement_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("movement_date <= $%d", *f.To)
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY movement_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)
	return r.list(ctx, query, args...)
}

func (r *StockMovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockMovement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list stock movements", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, classify("scan stock movement", err)
		}
		list = append(list, m)
	}
	return list, classify("list stock movements", rows.Err())
}

// Balances suma del libro por (producto, bodega).
func (r *StockMovementRepo) Balances(ctx context.Context, key *entity.StockKey) ([]entity.LedgerBalance, error) {
	query := `SELECT product_id, warehouse_id, SUM(quantity) FROM stock_movements`
	var args []any
	if key != nil {
		query += ` WHERE product_id = $1 AND warehouse_id = $2`
		args = append(args, key.ProductID, key.WarehouseID)
	}
	query += ` GROUP BY product_id, warehouse_id ORDER BY product_id, warehouse_id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("ledger balances", err)
	}
	defer rows.Close()
	var list []entity.LedgerBalance
	for rows.Next() {
		var b entity.LedgerBalance
		if err := rows.Scan(&b.ProductID, &b.WarehouseID, &b.Quantity); err != nil {
			return nil, classify("scan ledger balance", err)
		}
		list = append(list, b)
	}
	return list, classify("ledger balances", rows.Err())
}
