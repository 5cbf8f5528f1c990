package ddt

import (
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ddt-ledger/internal/application/notify"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

const (
	maxDocumentNumber = 100
	maxCarrierName    = 255
	maxTrackingNumber = 100
	maxUnit           = 20
	maxReason         = 500
)

// HeaderInput cabecera del documento en create/update.
type HeaderInput struct {
	DocumentNumber  string
	Kind            entity.DdtKind
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
}

// ItemInput línea del documento.
type ItemInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	Unit      string
	UnitCost  *decimal.Decimal
	Notes     string
}

func validateHeader(h HeaderInput, ve *domain.ValidationError) {
	if h.DocumentNumber == "" {
		ve.Add("document_number", "requerido")
	} else if utf8.RuneCountInString(h.DocumentNumber) > maxDocumentNumber {
		ve.Add("document_number", "máximo 100 caracteres")
	}
	if !h.Kind.Valid() {
		ve.Add("kind", "tipo inválido")
	}
	if h.DdtDate.IsZero() {
		ve.Add("ddt_date", "requerida")
	}
	if utf8.RuneCountInString(h.CarrierName) > maxCarrierName {
		ve.Add("carrier_name", "máximo 255 caracteres")
	}
	if utf8.RuneCountInString(h.TrackingNumber) > maxTrackingNumber {
		ve.Add("tracking_number", "máximo 100 caracteres")
	}
	if h.FromWarehouseID == nil && h.ToWarehouseID == nil {
		ve.Add("warehouse", "se requiere al menos una bodega")
	}
	switch h.Kind {
	case entity.DdtKindOutgoing, entity.DdtKindRentalOut:
		if h.FromWarehouseID == nil {
			ve.Add("from_warehouse_id", "requerido para "+string(h.Kind))
		}
	case entity.DdtKindInternal:
		if h.FromWarehouseID == nil || h.ToWarehouseID == nil {
			ve.Add("to_warehouse_id", "internal requiere bodega origen y destino")
		} else if *h.FromWarehouseID == *h.ToWarehouseID {
			ve.Add("to_warehouse_id", "debe ser distinta del origen")
		}
	}
	if h.RentalStartDate != nil && h.RentalEndDate != nil && !h.RentalEndDate.After(*h.RentalStartDate) {
		ve.Add("rental_end_date", "debe ser posterior al inicio")
	}
}

func validateItems(items []ItemInput, ve *domain.ValidationError) {
	if len(items) == 0 {
		ve.Add("items", "se requiere al menos una línea")
		return
	}
	for i, it := range items {
		field := "items[" + strconv.Itoa(i) + "]"
		if it.ProductID <= 0 {
			ve.Add(field+".product_id", "requerido")
		}
		if !it.Quantity.IsPositive() {
			ve.Add(field+".quantity", "debe ser mayor que cero")
		} else if msg := domain.ScaleError(it.Quantity); msg != "" {
			ve.Add(field+".quantity", msg)
		}
		if it.Unit == "" {
			ve.Add(field+".unit", "requerida")
		} else if utf8.RuneCountInString(it.Unit) > maxUnit {
			ve.Add(field+".unit", "máximo 20 caracteres")
		}
		if it.UnitCost != nil && it.UnitCost.IsNegative() {
			ve.Add(field+".unit_cost", "no puede ser negativo")
		} else if it.UnitCost != nil {
			if msg := domain.ScaleError(*it.UnitCost); msg != "" {
				ve.Add(field+".unit_cost", msg)
			}
		}
	}
}

func buildItems(items []ItemInput) []entity.DdtItem {
	out := make([]entity.DdtItem, 0, len(items))
	for _, it := range items {
		out = append(out, entity.DdtItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			UnitCost:  it.UnitCost,
			Notes:     it.Notes,
		})
	}
	return out
}

// applyHeader copia la cabecera al documento y devuelve los campos modificados.
func applyHeader(d *entity.Ddt, h HeaderInput) map[string]notify.Change {
	changes := make(map[string]notify.Change)
	setStr := func(name string, dst *string, v string) {
		if *dst != v {
			changes[name] = notify.Change{From: *dst, To: v}
			*dst = v
		}
	}
	setID := func(name string, dst **int64, v *int64) {
		if !eqPtr(*dst, v) {
			changes[name] = notify.Change{From: derefOrNil(*dst), To: derefOrNil(v)}
			*dst = v
		}
	}
	setTime := func(name string, dst **time.Time, v *time.Time) {
		if !eqTime(*dst, v) {
			changes[name] = notify.Change{From: timeOrNil(*dst), To: timeOrNil(v)}
			*dst = v
		}
	}

	setStr("document_number", &d.DocumentNumber, h.DocumentNumber)
	setID("from_warehouse_id", &d.FromWarehouseID, h.FromWarehouseID)
	setID("to_warehouse_id", &d.ToWarehouseID, h.ToWarehouseID)
	setID("supplier_id", &d.SupplierID, h.SupplierID)
	setID("customer_id", &d.CustomerID, h.CustomerID)
	setID("site_id", &d.SiteID, h.SiteID)
	setID("parent_ddt_id", &d.ParentDdtID, h.ParentDdtID)
	if !d.DdtDate.Equal(h.DdtDate) {
		changes["ddt_date"] = notify.Change{From: d.DdtDate, To: h.DdtDate}
		d.DdtDate = h.DdtDate
	}
	setTime("transport_date", &d.TransportDate, h.TransportDate)
	setTime("rental_start_date", &d.RentalStartDate, h.RentalStartDate)
	setTime("rental_end_date", &d.RentalEndDate, h.RentalEndDate)
	setStr("carrier_name", &d.CarrierName, h.CarrierName)
	setStr("tracking_number", &d.TrackingNumber, h.TrackingNumber)
	setStr("notes", &d.Notes, h.Notes)
	return changes
}

func eqPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func derefOrNil(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeOrNil(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
