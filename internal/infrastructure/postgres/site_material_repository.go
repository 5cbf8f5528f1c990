package postgres

import (
	"context"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ repository.SiteMaterialRepository = (*SiteMaterialRepo)(nil)

// SiteMaterialRepo materiales entregados en obra.
type SiteMaterialRepo struct {
	q Querier
}

// NewSiteMaterialRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSiteMaterialRepository(q Querier) *SiteMaterialRepo {
	return &SiteMaterialRepo{q: q}
}

// AddDelivered suma la cantidad entregada a la fila (obra, producto).
func (r *SiteMaterialRepo) AddDelivered(ctx context.Context, m *entity.SiteMaterial) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO site_materials (site_id, product_id, unit, quantity_delivered, last_ddt_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site_id, product_id) DO UPDATE SET
			quantity_delivered = site_materials.quantity_delivered + EXCLUDED.quantity_delivered,
			last_ddt_id = EXCLUDED.last_ddt_id,
			updated_at = EXCLUDED.updated_at`,
		m.SiteID, m.ProductID, m.Unit, m.QuantityDelivered, m.LastDdtID, m.UpdatedAt)
	return classify("add site material", err)
}

// ListBySite materiales de la obra.
func (r *SiteMaterialRepo) ListBySite(ctx context.Context, siteID int64) ([]*entity.SiteMaterial, error) {
	rows, err := r.q.Query(ctx, `
		SELECT site_id, product_id, unit, quantity_delivered, last_ddt_id, updated_at
		FROM site_materials WHERE site_id = $1 ORDER BY product_id`, siteID)
	if err != nil {
		return nil, classify("list site materials", err)
	}
	defer rows.Close()
	var list []*entity.SiteMaterial
	for rows.Next() {
		var m entity.SiteMaterial
		if err := rows.Scan(&m.SiteID, &m.ProductID, &m.Unit, &m.QuantityDelivered, &m.LastDdtID, &m.UpdatedAt); err != nil {
			return nil, classify("scan site material", err)
		}
		list = append(list, &m)
	}
	return list, classify("list site materials", rows.Err())
}
