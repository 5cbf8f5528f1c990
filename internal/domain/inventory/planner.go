package inventory

import (
	"sort"

	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Entry asiento planificado, todavía sin ID ni código.
type Entry struct {
	Key      entity.StockKey
	Type     entity.MovementType
	Quantity decimal.Decimal // con signo
	UnitCost *decimal.Decimal
	Reverses *int64
	Notes    string
}

// PlanMovements genera los asientos de la confirmación de un documento: uno por línea, dos para internal.
func PlanMovements(d *entity.Ddt) ([]Entry, error) {
	if len(d.Items) == 0 {
		return nil, domain.NewValidationError("items", "el documento no tiene líneas")
	}
	from, hasFrom := d.SourceWarehouse()
	to, hasTo := d.DestinationWarehouse()

	ve := &domain.ValidationError{}
	switch d.Kind {
	case entity.DdtKindOutgoing, entity.DdtKindRentalOut:
		if !hasFrom {
			ve.Add("from_warehouse_id", "requerido para "+string(d.Kind))
		}
	case entity.DdtKindIncoming, entity.DdtKindRentalReturn:
		if !hasTo {
			ve.Add("to_warehouse_id", "requerido para "+string(d.Kind))
		}
	case entity.DdtKindInternal:
		if !hasFrom {
			ve.Add("from_warehouse_id", "requerido para internal")
		}
		if !hasTo {
			ve.Add("to_warehouse_id", "requerido para internal")
		}
	default:
		ve.Add("kind", "tipo de documento desconocido")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(d.Items)*2)
	for _, it := range d.Items {
		q := it.Quantity
		switch d.Kind {
		case entity.DdtKindOutgoing:
			entries = append(entries, Entry{Key: key(it.ProductID, from), Type: entity.MovementTypeOutput, Quantity: q.Neg(), UnitCost: it.UnitCost})
		case entity.DdtKindIncoming:
			entries = append(entries, Entry{Key: key(it.ProductID, to), Type: entity.MovementTypeIntake, Quantity: q, UnitCost: it.UnitCost})
		case entity.DdtKindInternal:
			entries = append(entries,
				Entry{Key: key(it.ProductID, from), Type: entity.MovementTypeOutput, Quantity: q.Neg(), UnitCost: it.UnitCost},
				Entry{Key: key(it.ProductID, to), Type: entity.MovementTypeIntake, Quantity: q, UnitCost: it.UnitCost},
			)
		case entity.DdtKindRentalOut:
			entries = append(entries, Entry{Key: key(it.ProductID, from), Type: entity.MovementTypeRentalOut, Quantity: q.Neg(), UnitCost: it.UnitCost})
		case entity.DdtKindRentalReturn:
			entries = append(entries, Entry{Key: key(it.ProductID, to), Type: entity.MovementTypeRentalReturn, Quantity: q, UnitCost: it.UnitCost})
		}
	}
	return entries, nil
}

// PlanReversals genera el reverso de cada asiento original que aún no tenga uno.
// Los originales nunca se modifican.
func PlanReversals(existing []*entity.StockMovement) []Entry {
	reversed := make(map[int64]struct{})
	for _, m := range existing {
		if m.ReversesMovementID != nil {
			reversed[*m.ReversesMovementID] = struct{}{}
		}
	}
	var entries []Entry
	for _, m := range existing {
		if m.IsReversal() {
			continue
		}
		if _, ok := reversed[m.ID]; ok {
			continue
		}
		id := m.ID
		entries = append(entries, Entry{
			Key:      m.Key(),
			Type:     m.Type.Opposite(),
			Quantity: m.Quantity.Neg(),
			UnitCost: m.UnitCost,
			Reverses: &id,
		})
	}
	return entries
}

// LockKeys claves únicas afectadas, en orden ascendente (orden de bloqueo).
func LockKeys(entries []Entry) []entity.StockKey {
	seen := make(map[entity.StockKey]struct{}, len(entries))
	keys := make([]entity.StockKey, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Key]; ok {
			continue
		}
		seen[e.Key] = struct{}{}
		keys = append(keys, e.Key)
	}
	SortKeys(keys)
	return keys
}

// SortKeys ordena las claves por producto y bodega.
func SortKeys(keys []entity.StockKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Requirements cantidad total a descontar por clave (solo asientos negativos).
func Requirements(entries []Entry) map[entity.StockKey]decimal.Decimal {
	req := make(map[entity.StockKey]decimal.Decimal)
	for _, e := range entries {
		if !e.Quantity.IsNegative() {
			continue
		}
		req[e.Key] = req[e.Key].Add(e.Quantity.Abs())
	}
	return req
}

// CheckAvailability verifica que el stock libre cubra cada requerimiento, recorriendo las claves en orden.
// Una fila ausente cuenta como libre cero.
func CheckAvailability(rows map[entity.StockKey]*entity.Inventory, req map[entity.StockKey]decimal.Decimal) error {
	keys := make([]entity.StockKey, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	SortKeys(keys)
	for _, k := range keys {
		free := decimal.Zero
		if row, ok := rows[k]; ok && row != nil {
			free = row.Free()
		}
		if free.LessThan(req[k]) {
			return &domain.InsufficientStockError{
				ProductID:   k.ProductID,
				WarehouseID: k.WarehouseID,
				Required:    req[k],
				Available:   free,
			}
		}
	}
	return nil
}

// Apply aplica un asiento a la fila bloqueada. Falla si el disponible quedaría negativo.
func Apply(row *entity.Inventory, e Entry) error {
	next := row.QuantityAvailable.Add(e.Quantity)
	if next.IsNegative() {
		return &domain.InsufficientStockError{
			ProductID:   row.ProductID,
			WarehouseID: row.WarehouseID,
			Required:    e.Quantity.Abs(),
			Available:   row.QuantityAvailable,
		}
	}
	if e.Quantity.IsPositive() && e.UnitCost != nil && e.Reverses == nil {
		row.AverageCost = WeightedAverageCost(row.QuantityAvailable, row.AverageCost, e.Quantity, *e.UnitCost)
	}
	row.QuantityAvailable = next
	return nil
}

func key(productID, warehouseID int64) entity.StockKey {
	return entity.StockKey{ProductID: productID, WarehouseID: warehouseID}
}
