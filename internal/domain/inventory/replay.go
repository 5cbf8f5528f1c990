package inventory

import (
	"sort"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Drift diferencia entre la fila materializada y la suma del libro.
type Drift struct {
	Key      entity.StockKey
	Stored   decimal.Decimal
	Replayed decimal.Decimal
}

// Difference stored - replayed.
func (d Drift) Difference() decimal.Decimal { return d.Stored.Sub(d.Replayed) }

// Replay suma los asientos por clave.
func Replay(movements []*entity.StockMovement) map[entity.StockKey]decimal.Decimal {
	out := make(map[entity.StockKey]decimal.Decimal)
	for _, m := range movements {
		out[m.Key()] = out[m.Key()].Add(m.Quantity)
	}
	return out
}

// Compare contrasta filas materializadas con saldos del libro. Claves presentes en un solo lado cuentan con cero en el otro.
func Compare(rows []*entity.Inventory, balances []entity.LedgerBalance) []Drift {
	replayed := make(map[entity.StockKey]decimal.Decimal, len(balances))
	for _, b := range balances {
		replayed[b.StockKey] = b.Quantity
	}
	seen := make(map[entity.StockKey]struct{}, len(rows))
	var drifts []Drift
	for _, r := range rows {
		k := r.Key()
		seen[k] = struct{}{}
		if q := replayed[k]; !q.Equal(r.QuantityAvailable) {
			drifts = append(drifts, Drift{Key: k, Stored: r.QuantityAvailable, Replayed: q})
		}
	}
	for _, b := range balances {
		if _, ok := seen[b.StockKey]; ok {
			continue
		}
		if !b.Quantity.IsZero() {
			drifts = append(drifts, Drift{Key: b.StockKey, Stored: decimal.Zero, Replayed: b.Quantity})
		}
	}
	SortDrifts(drifts)
	return drifts
}

// SortDrifts ordena por clave.
func SortDrifts(d []Drift) {
	sort.Slice(d, func(i, j int) bool { return d[i].Key.Less(d[j].Key) })
}
