package notify

import (
	"context"
	"time"

	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// LowStockAlert alerta de fila en o por debajo del mínimo.
type LowStockAlert struct {
	ProductID    int64     `json:"product_id"`
	WarehouseID  int64     `json:"warehouse_id"`
	Available    string    `json:"quantity_available"`
	MinimumStock string    `json:"minimum_stock"`
	Deficit      string    `json:"deficit"`
	DetectedAt   time.Time `json:"detected_at"`
}

// AlertSink destino externo de alertas (por ejemplo el broadcaster redis).
type AlertSink interface {
	PublishAlert(ctx context.Context, a LowStockAlert) error
}

// LowStockListener tras una confirmación revisa las filas que bajaron y alerta si quedaron en o bajo el mínimo.
// También implementa inventory.StockAlerter para ajustes y traslados manuales.
type LowStockListener struct {
	txRunner inventory.TxRunner
	sink     AlertSink
	log      *logger.Logger
}

var _ inventory.StockAlerter = (*LowStockListener)(nil)

// NewLowStockListener construye el listener. sink puede ser nil.
func NewLowStockListener(txRunner inventory.TxRunner, sink AlertSink, log *logger.Logger) *LowStockListener {
	return &LowStockListener{txRunner: txRunner, sink: sink, log: log}
}

// Handle implementa Listener.
func (l *LowStockListener) Handle(ctx context.Context, ev Event) {
	if ev.Type != EventConfirmed || ev.Ddt == nil {
		return
	}
	var keys []entity.StockKey
	for _, m := range ev.Ddt.Movements {
		if m.Quantity.IsNegative() {
			keys = append(keys, m.Key())
		}
	}
	if len(keys) == 0 {
		return
	}
	domaininv.SortKeys(keys)

	var low []*entity.Inventory
	err := l.txRunner.Run(ctx, func(tx inventory.Repos) error {
		var prev entity.StockKey
		for i, k := range keys {
			if i > 0 && k == prev {
				continue
			}
			prev = k
			row, err := tx.Inventory.Get(ctx, k)
			if err != nil {
				return err
			}
			if row.MinimumStock.IsPositive() && row.IsLowStock() {
				low = append(low, row)
			}
		}
		return nil
	})
	if err != nil {
		l.log.Error().Err(err).Int64("ddt_id", ev.Ddt.ID).Msg("revisar stock bajo")
		return
	}
	l.LowStock(ctx, low)
}

// LowStock implementa inventory.StockAlerter.
func (l *LowStockListener) LowStock(ctx context.Context, rows []*entity.Inventory) {
	for _, r := range rows {
		a := LowStockAlert{
			ProductID:    r.ProductID,
			WarehouseID:  r.WarehouseID,
			Available:    r.QuantityAvailable.String(),
			MinimumStock: r.MinimumStock.String(),
			Deficit:      r.Deficit().String(),
			DetectedAt:   time.Now(),
		}
		l.log.Warn().
			Int64("product_id", a.ProductID).
			Int64("warehouse_id", a.WarehouseID).
			Str("available", a.Available).
			Str("minimum", a.MinimumStock).
			Msg("stock bajo")
		if l.sink == nil {
			continue
		}
		if err := l.sink.PublishAlert(ctx, a); err != nil {
			l.log.Error().Err(err).Int64("product_id", a.ProductID).Msg("publicar alerta de stock bajo")
		}
	}
}
