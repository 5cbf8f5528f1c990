package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de asiento del libro de movimientos.
type MovementType string

const (
	MovementTypeIntake       MovementType = "intake"        // entrada
	MovementTypeOutput       MovementType = "output"        // salida
	MovementTypeTransfer     MovementType = "transfer"      // traslado manual entre bodegas
	MovementTypeAdjustment   MovementType = "adjustment"    // ajuste de inventario
	MovementTypeRentalOut    MovementType = "rental_out"    // salida en alquiler
	MovementTypeRentalReturn MovementType = "rental_return" // devolución de alquiler
)

// Opposite tipo del asiento de reverso. transfer y adjustment conservan su tipo.
func (t MovementType) Opposite() MovementType {
	switch t {
	case MovementTypeIntake:
		return MovementTypeOutput
	case MovementTypeOutput:
		return MovementTypeIntake
	case MovementTypeRentalOut:
		return MovementTypeRentalReturn
	case MovementTypeRentalReturn:
		return MovementTypeRentalOut
	}
	return t
}

// StockMovement asiento inmutable del libro. Quantity es con signo: positivo suma, negativo resta.
type StockMovement struct {
	ID                 int64
	Code               string
	ProductID          int64
	WarehouseID        int64
	Type               MovementType
	Quantity           decimal.Decimal
	UnitCost           *decimal.Decimal
	MovementDate       time.Time
	UserID             int64
	DdtID              *int64
	ReversesMovementID *int64
	Notes              string
	CreatedAt          time.Time
}

// Key clave (producto, bodega) afectada por el asiento.
func (m *StockMovement) Key() StockKey {
	return StockKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID}
}

// IsReversal indica si el asiento anula otro.
func (m *StockMovement) IsReversal() bool { return m.ReversesMovementID != nil }
