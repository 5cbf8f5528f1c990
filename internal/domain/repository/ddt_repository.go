package repository

import (
	"context"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// DdtFilter filtros de listado de documentos de transporte.
type DdtFilter struct {
	Kind        *entity.DdtKind
	Status      *entity.DdtStatus
	WarehouseID *int64 // origen o destino
	SiteID      *int64
	SupplierID  *int64
	CustomerID  *int64
	DateFrom    *time.Time
	DateTo      *time.Time
	Search      string // código o número de documento
	SortBy      string // ddt_date | code | created_at
	SortDesc    bool
	Limit       int
	Offset      int
}

// DdtRepository puerto de persistencia del documento y sus líneas. Excluye borrados lógicos.
type DdtRepository interface {
	// Create inserta cabecera y líneas; ErrDuplicate si el código ya existe.
	Create(ctx context.Context, d *entity.Ddt) error
	// Update persiste la cabecera (estado, fechas, notas, bodegas, etc.).
	Update(ctx context.Context, d *entity.Ddt) error
	// CodeExists incluye documentos borrados.
	CodeExists(ctx context.Context, code string) (bool, error)
	ReplaceItems(ctx context.Context, ddtID int64, items []entity.DdtItem) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id int64) (*entity.Ddt, error)
	// GetForUpdate bloquea la fila del documento; nil, nil si no existe.
	GetForUpdate(ctx context.Context, id int64) (*entity.Ddt, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	List(ctx context.Context, f DdtFilter) ([]*entity.Ddt, int, error)
}
