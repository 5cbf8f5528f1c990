package notify

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// SiteMaterialListener acumula en la obra las cantidades entregadas por documentos outgoing.
// Corre en su propia transacción; un fallo no revierte la entrega.
type SiteMaterialListener struct {
	txRunner inventory.TxRunner
	log      *logger.Logger
}

// NewSiteMaterialListener construye el listener.
func NewSiteMaterialListener(txRunner inventory.TxRunner, log *logger.Logger) *SiteMaterialListener {
	return &SiteMaterialListener{txRunner: txRunner, log: log}
}

// Handle implementa Listener.
func (l *SiteMaterialListener) Handle(ctx context.Context, ev Event) {
	d := ev.Ddt
	if ev.Type != EventDelivered || d == nil || d.Kind != entity.DdtKindOutgoing || d.SiteID == nil {
		return
	}
	err := l.txRunner.Run(ctx, func(tx inventory.Repos) error {
		for _, it := range d.Items {
			ddtID := d.ID
			m := &entity.SiteMaterial{
				SiteID:            *d.SiteID,
				ProductID:         it.ProductID,
				Unit:              it.Unit,
				QuantityDelivered: it.Quantity,
				LastDdtID:         &ddtID,
				UpdatedAt:         ev.OccurredAt,
			}
			if err := tx.SiteMaterials.AddDelivered(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.log.Error().Err(err).Int64("ddt_id", d.ID).Int64("site_id", *d.SiteID).Msg("actualizar materiales de obra")
		return
	}
	l.log.Info().Int64("ddt_id", d.ID).Int64("site_id", *d.SiteID).Int("items", len(d.Items)).Msg("materiales de obra actualizados")
}
