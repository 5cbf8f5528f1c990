package repository

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
)

// SiteMaterialRepository puerto de materiales entregados en obra.
type SiteMaterialRepository interface {
	// AddDelivered suma la cantidad entregada (crea la fila si no existe).
	AddDelivered(ctx context.Context, m *entity.SiteMaterial) error
	ListBySite(ctx context.Context, siteID int64) ([]*entity.SiteMaterial, error)
}
