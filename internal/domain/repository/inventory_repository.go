package repository

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// InventoryFilter filtros de consulta de existencias.
type InventoryFilter struct {
	ProductID   *int64
	WarehouseID *int64
	LowStock    bool
	Limit       int
	Offset      int
}

// InventoryRepository puerto de la fila materializada de existencias (producto, bodega).
type InventoryRepository interface {
	// Get devuelve la fila o una fila en cero si no existe (no la crea).
	Get(ctx context.Context, key entity.StockKey) (*entity.Inventory, error)
	// LockForUpdate crea las filas faltantes y las bloquea (SELECT FOR UPDATE) en orden ascendente de clave.
	LockForUpdate(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Inventory, error)
	// Save persiste cantidades, mínimo y costo de una fila previamente bloqueada.
	Save(ctx context.Context, inv *entity.Inventory) error
	List(ctx context.Context, f InventoryFilter) ([]*entity.Inventory, error)
}
