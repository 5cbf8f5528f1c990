package entity

import (
	"time"

	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// DdtKind tipo de documento de transporte.
type DdtKind string

const (
	DdtKindIncoming     DdtKind = "incoming"      // entrada desde proveedor
	DdtKindOutgoing     DdtKind = "outgoing"      // salida hacia cliente u obra
	DdtKindInternal     DdtKind = "internal"      // traslado entre bodegas propias
	DdtKindRentalOut    DdtKind = "rental_out"    // salida en alquiler
	DdtKindRentalReturn DdtKind = "rental_return" // devolución de alquiler
)

// Valid indica si el tipo es conocido.
func (k DdtKind) Valid() bool {
	switch k {
	case DdtKindIncoming, DdtKindOutgoing, DdtKindInternal, DdtKindRentalOut, DdtKindRentalReturn:
		return true
	}
	return false
}

// DecrementsSource indica si el documento descuenta stock de la bodega origen al confirmarse.
func (k DdtKind) DecrementsSource() bool {
	return k == DdtKindOutgoing || k == DdtKindInternal || k == DdtKindRentalOut
}

// CodePrefix segmento del código del documento por tipo.
func (k DdtKind) CodePrefix() string {
	switch k {
	case DdtKindIncoming:
		return "IN"
	case DdtKindOutgoing:
		return "OUT"
	case DdtKindInternal:
		return "INT"
	case DdtKindRentalOut:
		return "RNO"
	case DdtKindRentalReturn:
		return "RNR"
	}
	return "DDT"
}

// DdtStatus estado del ciclo de vida del documento.
type DdtStatus string

const (
	DdtStatusDraft     DdtStatus = "draft"
	DdtStatusIssued    DdtStatus = "issued"
	DdtStatusInTransit DdtStatus = "in_transit"
	DdtStatusDelivered DdtStatus = "delivered"
	DdtStatusCancelled DdtStatus = "cancelled"
	// DdtStatusDeleted pseudo-estado destino del borrado lógico; no se persiste en status.
	DdtStatusDeleted DdtStatus = "deleted"
)

// Valid indica si el estado es persistible.
func (s DdtStatus) Valid() bool {
	switch s {
	case DdtStatusDraft, DdtStatusIssued, DdtStatusInTransit, DdtStatusDelivered, DdtStatusCancelled:
		return true
	}
	return false
}

// Terminal indica si no existe transición de salida.
func (s DdtStatus) Terminal() bool {
	return s == DdtStatusDelivered || s == DdtStatusCancelled || s == DdtStatusDeleted
}

// transitions tabla de estados: origen -> destinos permitidos.
var transitions = map[DdtStatus][]DdtStatus{
	DdtStatusDraft:     {DdtStatusIssued, DdtStatusDeleted},
	DdtStatusIssued:    {DdtStatusInTransit, DdtStatusDelivered, DdtStatusCancelled},
	DdtStatusInTransit: {DdtStatusDelivered, DdtStatusCancelled},
}

// CanTransition indica si from -> to es una arista de la tabla.
func CanTransition(from, to DdtStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Ddt documento de transporte (agregado). Items solo son mutables en draft.
type Ddt struct {
	ID              int64
	Code            string
	DocumentNumber  string
	Kind            DdtKind
	Status          DdtStatus
	FromWarehouseID *int64
	ToWarehouseID   *int64
	SupplierID      *int64
	CustomerID      *int64
	SiteID          *int64
	ParentDdtID     *int64
	DdtDate         time.Time
	TransportDate   *time.Time
	RentalStartDate *time.Time
	RentalEndDate   *time.Time
	CarrierName     string
	TrackingNumber  string
	Notes           string
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeliveredAt     *time.Time
	DeletedAt       *time.Time
	Items           []DdtItem
	Movements       []*StockMovement
}

// DdtItem línea de producto del documento.
type DdtItem struct {
	ID        int64
	DdtID     int64
	ProductID int64
	Quantity  decimal.Decimal
	Unit      string
	UnitCost  *decimal.Decimal
	Notes     string
}

// IsDeleted indica si el documento fue borrado lógicamente.
func (d *Ddt) IsDeleted() bool { return d.DeletedAt != nil }

// CurrentStatus estado efectivo (deleted si hay borrado lógico).
func (d *Ddt) CurrentStatus() DdtStatus {
	if d.IsDeleted() {
		return DdtStatusDeleted
	}
	return d.Status
}

// CheckTransition valida el paso del estado actual a to.
func (d *Ddt) CheckTransition(to DdtStatus) error {
	cur := d.CurrentStatus()
	if !CanTransition(cur, to) {
		return &domain.InvalidTransitionError{Current: string(cur), Target: string(to)}
	}
	return nil
}

// SourceWarehouse bodega de la que sale la mercancía.
func (d *Ddt) SourceWarehouse() (int64, bool) {
	if d.FromWarehouseID == nil {
		return 0, false
	}
	return *d.FromWarehouseID, true
}

// DestinationWarehouse bodega que recibe; incoming y rental_return caen en from si to está vacío.
func (d *Ddt) DestinationWarehouse() (int64, bool) {
	if d.ToWarehouseID != nil {
		return *d.ToWarehouseID, true
	}
	if (d.Kind == DdtKindIncoming || d.Kind == DdtKindRentalReturn) && d.FromWarehouseID != nil {
		return *d.FromWarehouseID, true
	}
	return 0, false
}

// TotalQuantity suma de cantidades de las líneas.
func (d *Ddt) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Quantity)
	}
	return total
}

// AppendNote agrega una línea a las notas del documento.
func (d *Ddt) AppendNote(line string) {
	if d.Notes == "" {
		d.Notes = line
		return
	}
	d.Notes += "\n" + line
}
