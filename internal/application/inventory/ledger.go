package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
)

// PostMeta datos comunes a los asientos de una misma operación.
type PostMeta struct {
	UserID int64
	DdtID  *int64
	Date   time.Time
	Notes  string
}

// LockRows crea y bloquea las filas de inventario de las claves, en orden ascendente.
func LockRows(ctx context.Context, tx Repos, keys []entity.StockKey) (map[entity.StockKey]*entity.Inventory, error) {
	sorted := append([]entity.StockKey(nil), keys...)
	domaininv.SortKeys(sorted)
	rows, err := tx.Inventory.LockForUpdate(ctx, sorted)
	if err != nil {
		return nil, fmt.Errorf("bloquear inventario: %w", err)
	}
	return rows, nil
}

// Post aplica los asientos a las filas ya bloqueadas, los inserta en el libro y persiste las filas tocadas.
// Debe ejecutarse dentro de la transacción que tomó los bloqueos.
func Post(ctx context.Context, tx Repos, rows map[entity.StockKey]*entity.Inventory, entries []domaininv.Entry, meta PostMeta) ([]*entity.StockMovement, error) {
	if meta.Date.IsZero() {
		meta.Date = time.Now()
	}
	created := make([]*entity.StockMovement, 0, len(entries))
	for _, e := range entries {
		row, ok := rows[e.Key]
		if !ok {
			return nil, fmt.Errorf("fila de inventario no bloqueada: producto %d bodega %d", e.Key.ProductID, e.Key.WarehouseID)
		}
		if err := domaininv.Apply(row, e); err != nil {
			return nil, err
		}
		row.UpdatedAt = meta.Date

		code, err := NextMovementCode(ctx, tx.Codes, meta.Date)
		if err != nil {
			return nil, err
		}
		notes := e.Notes
		if notes == "" {
			notes = meta.Notes
		}
		m := &entity.StockMovement{
			Code:               code,
			ProductID:          e.Key.ProductID,
			WarehouseID:        e.Key.WarehouseID,
			Type:               e.Type,
			Quantity:           e.Quantity,
			UnitCost:           e.UnitCost,
			MovementDate:       meta.Date,
			UserID:             meta.UserID,
			DdtID:              meta.DdtID,
			ReversesMovementID: e.Reverses,
			Notes:              notes,
		}
		if err := tx.Movements.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("registrar movimiento: %w", err)
		}
		created = append(created, m)
	}

	for _, k := range domaininv.LockKeys(entries) {
		if err := tx.Inventory.Save(ctx, rows[k]); err != nil {
			return nil, fmt.Errorf("actualizar inventario: %w", err)
		}
	}
	return created, nil
}
