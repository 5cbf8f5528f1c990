package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
)

// AdjustRequest cuerpo de POST /api/inventory/adjust. Quantity con signo.
type AdjustRequest struct {
	ProductID   int64            `json:"product_id"`
	WarehouseID int64            `json:"warehouse_id"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// TransferRequest cuerpo de POST /api/inventory/transfer.
type TransferRequest struct {
	ProductID       int64           `json:"product_id"`
	FromWarehouseID int64           `json:"from_warehouse_id"`
	ToWarehouseID   int64           `json:"to_warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Notes           string          `json:"notes,omitempty"`
}

// ReservationRequest cuerpo de reserve / release.
type ReservationRequest struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// MinimumStockRequest cuerpo de PUT /api/inventory/minimum.
type MinimumStockRequest struct {
	ProductID    int64           `json:"product_id"`
	WarehouseID  int64           `json:"warehouse_id"`
	MinimumStock decimal.Decimal `json:"minimum_stock"`
}

// InventoryResponse fila de existencias.
type InventoryResponse struct {
	ProductID         int64           `json:"product_id"`
	WarehouseID       int64           `json:"warehouse_id"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`
	QuantityReserved  decimal.Decimal `json:"quantity_reserved"`
	QuantityFree      decimal.Decimal `json:"quantity_free"`
	MinimumStock      decimal.Decimal `json:"minimum_stock"`
	AverageCost       decimal.Decimal `json:"average_cost"`
	LowStock          bool            `json:"low_stock"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InventoryListResponse listado de existencias.
type InventoryListResponse struct {
	Items []InventoryResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}

// MovementResponse asiento del libro.
type MovementResponse struct {
	ID                 int64            `json:"id"`
	Code               string           `json:"code"`
	ProductID          int64            `json:"product_id"`
	WarehouseID        int64            `json:"warehouse_id"`
	Type               string           `json:"type"`
	Quantity           decimal.Decimal  `json:"quantity"`
	UnitCost           *decimal.Decimal `json:"unit_cost,omitempty"`
	MovementDate       time.Time        `json:"movement_date"`
	UserID             int64            `json:"user_id"`
	DdtID              *int64           `json:"ddt_id,omitempty"`
	ReversesMovementID *int64           `json:"reverses_movement_id,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// MovementListResponse listado de asientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// DriftResponse desvío entre la fila y la suma del libro.
type DriftResponse struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Stored      decimal.Decimal `json:"stored"`
	Replayed    decimal.Decimal `json:"replayed"`
	Difference  decimal.Decimal `json:"difference"`
}

// FromInventory mapea una fila.
func FromInventory(inv *entity.Inventory) InventoryResponse {
	return InventoryResponse{
		ProductID:         inv.ProductID,
		WarehouseID:       inv.WarehouseID,
		QuantityAvailable: inv.QuantityAvailable,
		QuantityReserved:  inv.QuantityReserved,
		QuantityFree:      inv.Free(),
		MinimumStock:      inv.MinimumStock,
		AverageCost:       inv.AverageCost,
		LowStock:          inv.MinimumStock.IsPositive() && inv.IsLowStock(),
		UpdatedAt:         inv.UpdatedAt,
	}
}

// FromInventories mapea un listado.
func FromInventories(list []*entity.Inventory) []InventoryResponse {
	out := make([]InventoryResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, FromInventory(inv))
	}
	return out
}

// FromMovement mapea un asiento.
func FromMovement(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:                 m.ID,
		Code:               m.Code,
		ProductID:          m.ProductID,
		WarehouseID:        m.WarehouseID,
		Type:               string(m.Type),
		Quantity:           m.Quantity,
		UnitCost:           m.UnitCost,
		MovementDate:       m.MovementDate,
		UserID:             m.UserID,
		DdtID:              m.DdtID,
		ReversesMovementID: m.ReversesMovementID,
		Notes:              m.Notes,
		CreatedAt:          m.CreatedAt,
	}
}

// FromMovements mapea un listado; nunca devuelve nil.
func FromMovements(list []*entity.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, FromMovement(m))
	}
	return out
}

// FromDrifts mapea los desvíos de auditoría.
func FromDrifts(list []domaininv.Drift) []DriftResponse {
	out := make([]DriftResponse, 0, len(list))
	for _, d := range list {
		out = append(out, DriftResponse{
			ProductID:   d.Key.ProductID,
			WarehouseID: d.Key.WarehouseID,
			Stored:      d.Stored,
			Replayed:    d.Replayed,
			Difference:  d.Difference(),
		})
	}
	return out
}
