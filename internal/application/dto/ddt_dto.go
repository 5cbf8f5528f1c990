package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// DateLayout formato de fechas sin hora en requests y responses.
const DateLayout = "2006-01-02"

// DdtItemRequest línea del documento.
type DdtItemRequest struct {
	ProductID int64            `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Unit      string           `json:"unit"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// DdtRequest cuerpo de POST /api/ddts y PUT /api/ddts/{id}. En PUT, items ausente conserva las líneas.
type DdtRequest struct {
	DocumentNumber  string           `json:"document_number"`
	Kind            string           `json:"kind"`
	FromWarehouseID *int64           `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *int64           `json:"to_warehouse_id,omitempty"`
	SupplierID      *int64           `json:"supplier_id,omitempty"`
	CustomerID      *int64           `json:"customer_id,omitempty"`
	SiteID          *int64           `json:"site_id,omitempty"`
	ParentDdtID     *int64           `json:"parent_ddt_id,omitempty"`
	DdtDate         string           `json:"ddt_date"`
	TransportDate   *time.Time       `json:"transport_date,omitempty"`
	RentalStartDate *string          `json:"rental_start_date,omitempty"`
	RentalEndDate   *string          `json:"rental_end_date,omitempty"`
	CarrierName     string           `json:"carrier_name,omitempty"`
	TrackingNumber  string           `json:"tracking_number,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Items           []DdtItemRequest `json:"items"`
}

// CancelDdtRequest cuerpo de POST /api/ddts/{id}/cancel.
type CancelDdtRequest struct {
	Reason string `json:"reason"`
}

// DdtItemResponse línea del documento.
type DdtItemResponse struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	Unit      string           `json:"unit"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// DdtResponse documento con líneas y asientos.
type DdtResponse struct {
	ID              int64              `json:"id"`
	Code            string             `json:"code"`
	DocumentNumber  string             `json:"document_number"`
	Kind            string             `json:"kind"`
	Status          string             `json:"status"`
	FromWarehouseID *int64             `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *int64             `json:"to_warehouse_id,omitempty"`
	SupplierID      *int64             `json:"supplier_id,omitempty"`
	CustomerID      *int64             `json:"customer_id,omitempty"`
	SiteID          *int64             `json:"site_id,omitempty"`
	ParentDdtID     *int64             `json:"parent_ddt_id,omitempty"`
	DdtDate         string             `json:"ddt_date"`
	TransportDate   *time.Time         `json:"transport_date,omitempty"`
	RentalStartDate *string            `json:"rental_start_date,omitempty"`
	RentalEndDate   *string            `json:"rental_end_date,omitempty"`
	CarrierName     string             `json:"carrier_name,omitempty"`
	TrackingNumber  string             `json:"tracking_number,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	TotalQuantity   decimal.Decimal    `json:"total_quantity"`
	CreatedBy       int64              `json:"created_by"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	DeletedAt       *time.Time         `json:"deleted_at,omitempty"`
	Items           []DdtItemResponse  `json:"items"`
	Movements       []MovementResponse `json:"movements"`
}

// DdtListResponse lista paginada de documentos.
type DdtListResponse struct {
	Items []DdtResponse `json:"items"`
	Page  PageResponse  `json:"page"`
}

// DeleteResponse resultado del borrado lógico.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// FromDdt mapea el agregado a la respuesta.
func FromDdt(d *entity.Ddt) DdtResponse {
	out := DdtResponse{
		ID:              d.ID,
		Code:            d.Code,
		DocumentNumber:  d.DocumentNumber,
		Kind:            string(d.Kind),
		Status:          string(d.Status),
		FromWarehouseID: d.FromWarehouseID,
		ToWarehouseID:   d.ToWarehouseID,
		SupplierID:      d.SupplierID,
		CustomerID:      d.CustomerID,
		SiteID:          d.SiteID,
		ParentDdtID:     d.ParentDdtID,
		DdtDate:         d.DdtDate.Format(DateLayout),
		TransportDate:   d.TransportDate,
		RentalStartDate: formatDate(d.RentalStartDate),
		RentalEndDate:   formatDate(d.RentalEndDate),
		CarrierName:     d.CarrierName,
		TrackingNumber:  d.TrackingNumber,
		Notes:           d.Notes,
		TotalQuantity:   d.TotalQuantity(),
		CreatedBy:       d.CreatedBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		DeliveredAt:     d.DeliveredAt,
		DeletedAt:       d.DeletedAt,
		Items:           make([]DdtItemResponse, 0, len(d.Items)),
		Movements:       FromMovements(d.Movements),
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, DdtItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			UnitCost:  it.UnitCost,
			Notes:     it.Notes,
		})
	}
	return out
}

// FromDdts mapea un listado.
func FromDdts(list []*entity.Ddt) []DdtResponse {
	out := make([]DdtResponse, 0, len(list))
	for _, d := range list {
		out = append(out, FromDdt(d))
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
