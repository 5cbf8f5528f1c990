package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// AuditJob verifica periódicamente que las existencias coincidan con el libro. Solo reporta.
type AuditJob struct {
	svc     *Service
	log     *logger.Logger
	timeout time.Duration
}

// NewAuditJob construye el job de auditoría.
func NewAuditJob(svc *Service, log *logger.Logger) *AuditJob {
	return &AuditJob{svc: svc, log: log, timeout: 5 * time.Minute}
}

// Run punto de entrada para el scheduler.
func (j *AuditJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.Check(ctx); err != nil {
		j.log.Error().Err(err).Msg("auditoría de inventario")
	}
}

// Check ejecuta la verificación y devuelve la cantidad de desvíos.
func (j *AuditJob) Check(ctx context.Context) (int, error) {
	drifts, err := j.svc.Verify(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range drifts {
		j.log.Warn().
			Int64("product_id", d.Key.ProductID).
			Int64("warehouse_id", d.Key.WarehouseID).
			Str("stored", d.Stored.String()).
			Str("replayed", d.Replayed.String()).
			Msg("desvío entre inventario y libro")
	}
	j.log.Info().Int("drifts", len(drifts)).Msg("auditoría de inventario completada")
	return len(drifts), nil
}
