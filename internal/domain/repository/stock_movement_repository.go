package repository

import (
	"context"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// MovementFilter filtros para listar asientos del libro.
type MovementFilter struct {
	ProductID   *int64
	WarehouseID *int64
	DdtID       *int64
	Type        *entity.MovementType
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// StockMovementRepository puerto del libro de movimientos (solo inserción).
type StockMovementRepository interface {
	// Create inserta el asiento y asigna ID/CreatedAt. Un segundo reverso del mismo asiento falla con ErrDuplicate.
	Create(ctx context.Context, m *entity.StockMovement) error
	ListByDdt(ctx context.Context, ddtID int64) ([]*entity.StockMovement, error)
	List(ctx context.Context, f MovementFilter) ([]*entity.StockMovement, error)
	// Balances suma de cantidades por clave; key nil = todas las claves.
	Balances(ctx context.Context, key *entity.StockKey) ([]entity.LedgerBalance, error)
}
