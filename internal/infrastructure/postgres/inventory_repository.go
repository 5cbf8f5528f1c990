package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ repository.InventoryRepository = (*InventoryRepo)(nil)

// InventoryRepo existencias materializadas por (producto, bodega) sobre PostgreSQL.
type InventoryRepo struct {
	q Querier
}

// NewInventoryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryRepository(q Querier) *InventoryRepo {
	return &InventoryRepo{q: q}
}

const inventoryColumns = `product_id, warehouse_id, quantity_available, quantity_reserved, minimum_stock, average_cost, updated_at`

func scanInventory(row pgx.Row) (*entity.Inventory, error) {
	var i entity.Inventory
	if err := row.Scan(&i.ProductID, &i.WarehouseID, &i.QuantityAvailable, &i.QuantityReserved,
		&i.MinimumStock, &i.AverageCost, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

// Get devuelve la fila o una en cero si no existe.
func (r *InventoryRepo) Get(ctx context.Context, key entity.StockKey) (*entity.Inventory, error) {
	inv, err := scanInventory(r.q.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1 AND warehouse_id = $2`,
		key.ProductID, key.WarehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.NewInventory(key), nil
		}
		return nil, classify("get inventory", err)
	}
	return inv, nil
}

// LockForUpdate inserta las filas faltantes (ON CONFLICT DO NOTHING) y bloquea todas con SELECT FOR UPDATE
// ordenado por (product_id, warehouse_id). keys debe venir ordenado.
func (r *InventoryRepo) LockForUpdate(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Inventory, error) {
	out := make(map[entity.StockKey]*entity.Inventory, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	products := make([]int64, len(keys))
	warehouses := make([]int64, len(keys))
	for i, k := range keys {
		products[i] = k.ProductID
		warehouses[i] = k.WarehouseID
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO inventory (product_id, warehouse_id)
		SELECT p, w FROM unnest($1::bigint[], $2::bigint[]) AS k(p, w)
		ORDER BY p, w
		ON CONFLICT (product_id, warehouse_id) DO NOTHING`, products, warehouses); err != nil {
		return nil, classify("ensure inventory rows", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE (product_id, warehouse_id) IN (SELECT p, w FROM unnest($1::bigint[], $2::bigint[]) AS k(p, w))
		ORDER BY product_id, warehouse_id
		FOR UPDATE`, products, warehouses)
	if err != nil {
		return nil, classify("lock inventory rows", err)
	}
	defer rows.Close()
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, classify("scan inventory", err)
		}
		out[inv.Key()] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, classify("lock inventory rows", err)
	}
	if len(out) != len(uniqueKeys(keys)) {
		return nil, fmt.Errorf("lock inventory rows: se esperaban %d filas, se obtuvieron %d", len(uniqueKeys(keys)), len(out))
	}
	return out, nil
}

func uniqueKeys(keys []entity.StockKey) map[entity.StockKey]struct{} {
	m := make(map[entity.StockKey]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// Save persiste la fila (debe estar bloqueada por la transacción actual).
func (r *InventoryRepo) Save(ctx context.Context, inv *entity.Inventory) error {
	_, err := r.q.Exec(ctx, `
		UPDATE inventory SET quantity_available = $3, quantity_reserved = $4, minimum_stock = $5,
			average_cost = $6, updated_at = now()
		WHERE product_id = $1 AND warehouse_id = $2`,
		inv.ProductID, inv.WarehouseID, inv.QuantityAvailable, inv.QuantityReserved, inv.MinimumStock, inv.AverageCost)
	return classify("update inventory", err)
}

// List filas filtradas. Limit 0 = sin límite (auditoría).
func (r *InventoryRepo) List(ctx context.Context, f repository.InventoryFilter) ([]*entity.Inventory, error) {
	var where []string
	var args []any
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if f.WarehouseID != nil {
		args = append(args, *f.WarehouseID)
		where = append(where, fmt.Sprintf("warehouse_id = $%d", len(args)))
	}
	if f.LowStock {
		where = append(where, "minimum_stock > 0 AND quantity_available <= minimum_stock")
	}
	query := `SELECT ` + inventoryColumns + ` FROM inventory`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY product_id, warehouse_id"
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list inventory", err)
	}
	defer rows.Close()
	var list []*entity.Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, classify("scan inventory", err)
		}
		list = append(list, inv)
	}
	return list, classify("list inventory", rows.Err())
}
