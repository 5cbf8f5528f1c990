package inventory

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

// Repos repositorios atados a una misma transacción.
type Repos struct {
	Ddts          repository.DdtRepository
	Movements     repository.StockMovementRepository
	Inventory     repository.InventoryRepository
	Codes         repository.CodeSequenceRepository
	SiteMaterials repository.SiteMaterialRepository
}

// TxRunner ejecuta fn dentro de una transacción; Commit si fn devuelve nil, Rollback en otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx Repos) error) error
}
