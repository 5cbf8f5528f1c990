package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica una fila de inventario.
type StockKey struct {
	ProductID   int64
	WarehouseID int64
}

// Less orden estable de bloqueo: producto y luego bodega, ascendente.
func (k StockKey) Less(o StockKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.WarehouseID < o.WarehouseID
}

// Inventory existencias materializadas por producto y bodega. Derivable del libro de movimientos.
type Inventory struct {
	ProductID         int64
	WarehouseID       int64
	QuantityAvailable decimal.Decimal
	QuantityReserved  decimal.Decimal
	MinimumStock      decimal.Decimal
	AverageCost       decimal.Decimal
	UpdatedAt         time.Time
}

// NewInventory fila vacía con valores en cero.
func NewInventory(key StockKey) *Inventory {
	return &Inventory{
		ProductID:         key.ProductID,
		WarehouseID:       key.WarehouseID,
		QuantityAvailable: decimal.Zero,
		QuantityReserved:  decimal.Zero,
		MinimumStock:      decimal.Zero,
		AverageCost:       decimal.Zero,
	}
}

// Key clave de la fila.
func (i *Inventory) Key() StockKey {
	return StockKey{ProductID: i.ProductID, WarehouseID: i.WarehouseID}
}

// Free cantidad libre: disponible menos reservado.
func (i *Inventory) Free() decimal.Decimal {
	return i.QuantityAvailable.Sub(i.QuantityReserved)
}

// IsLowStock disponible en o por debajo del mínimo configurado.
func (i *Inventory) IsLowStock() bool {
	return i.QuantityAvailable.LessThanOrEqual(i.MinimumStock)
}

// Deficit cantidad faltante para llegar al mínimo (cero si no hay faltante).
func (i *Inventory) Deficit() decimal.Decimal {
	d := i.MinimumStock.Sub(i.QuantityAvailable)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// LedgerBalance saldo de una clave obtenido sumando el libro.
type LedgerBalance struct {
	StockKey
	Quantity decimal.Decimal
}
