package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

var _ repository.DdtRepository = (*DdtRepo)(nil)

// DdtRepo implementación de DdtRepository sobre PostgreSQL (usable con pool o tx).
type DdtRepo struct {
	q Querier
}

// NewDdtRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDdtRepository(q Querier) *DdtRepo {
	return &DdtRepo{q: q}
}

const ddtColumns = `id, code, document_number, kind, status, from_warehouse_id, to_warehouse_id,
	supplier_id, customer_id, site_id, parent_ddt_id, ddt_date, transport_date,
	rental_start_date, rental_end_date, carrier_name, tracking_number, notes,
	created_by, created_at, updated_at, delivered_at, deleted_at`

func scanDdt(row pgx.Row) (*entity.Ddt, error) {
	var d entity.Ddt
	var kind, status string
	err := row.Scan(
		&d.ID, &d.Code, &d.DocumentNumber, &kind, &status, &d.FromWarehouseID, &d.ToWarehouseID,
		&d.SupplierID, &d.CustomerID, &d.SiteID, &d.ParentDdtID, &d.DdtDate, &d.TransportDate,
		&d.RentalStartDate, &d.RentalEndDate, &d.CarrierName, &d.TrackingNumber, &d.Notes,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.DeliveredAt, &d.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = entity.DdtKind(kind)
	d.Status = entity.DdtStatus(status)
	return &d, nil
}

// Create inserta cabecera y líneas.
func (r *DdtRepo) Create(ctx context.Context, d *entity.Ddt) error {
	query := `
		INSERT INTO ddts (code, document_number, kind, status, from_warehouse_id, to_warehouse_id,
			supplier_id, customer_id, site_id, parent_ddt_id, ddt_date, transport_date,
			rental_start_date, rental_end_date, carrier_name, tracking_number, notes,
			created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		d.Code, d.DocumentNumber, string(d.Kind), string(d.Status), d.FromWarehouseID, d.ToWarehouseID,
		d.SupplierID, d.CustomerID, d.SiteID, d.ParentDdtID, d.DdtDate, d.TransportDate,
		d.RentalStartDate, d.RentalEndDate, d.CarrierName, d.TrackingNumber, d.Notes,
		d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID)
	if err != nil {
		return classify("insert ddt", err)
	}
	return r.insertItems(ctx, d.ID, d.Items)
}

func (r *DdtRepo) insertItems(ctx context.Context, ddtID int64, items []entity.DdtItem) error {
	query := `
		INSERT INTO ddt_items (ddt_id, position, product_id, quantity, unit, unit_cost, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	for i := range items {
		it := &items[i]
		it.DdtID = ddtID
		if err := r.q.QueryRow(ctx, query, ddtID, i+1, it.ProductID, it.Quantity, it.Unit, it.UnitCost, it.Notes).Scan(&it.ID); err != nil {
			return classify("insert ddt item", err)
		}
	}
	return nil
}

// Update persiste la cabecera. Código, tipo y creador no cambian.
func (r *DdtRepo) Update(ctx context.Context, d *entity.Ddt) error {
	query := `
		UPDATE ddts SET document_number = $2, status = $3, from_warehouse_id = $4, to_warehouse_id = $5,
			supplier_id = $6, customer_id = $7, site_id = $8, parent_ddt_id = $9, ddt_date = $10,
			transport_date = $11, rental_start_date = $12, rental_end_date = $13, carrier_name = $14,
			tracking_number = $15, notes = $16, updated_at = $17, delivered_at = $18
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query,
		d.ID, d.DocumentNumber, string(d.Status), d.FromWarehouseID, d.ToWarehouseID,
		d.SupplierID, d.CustomerID, d.SiteID, d.ParentDdtID, d.DdtDate,
		d.TransportDate, d.RentalStartDate, d.RentalEndDate, d.CarrierName,
		d.TrackingNumber, d.Notes, d.UpdatedAt, d.DeliveredAt,
	)
	if err != nil {
		return classify("update ddt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update ddt %d: fila no encontrada", d.ID)
	}
	return nil
}

// CodeExists consulta también documentos borrados.
func (r *DdtRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ddts WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, classify("ddt code exists", err)
	}
	return exists, nil
}

// ReplaceItems borra y reinserta las líneas.
func (r *DdtRepo) ReplaceItems(ctx context.Context, ddtID int64, items []entity.DdtItem) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM ddt_items WHERE ddt_id = $1`, ddtID); err != nil {
		return classify("delete ddt items", err)
	}
	return r.insertItems(ctx, ddtID, items)
}

// GetByID obtiene el documento con sus líneas; nil, nil si no existe o fue borrado.
func (r *DdtRepo) GetByID(ctx context.Context, id int64) (*entity.Ddt, error) {
	return r.get(ctx, `SELECT `+ddtColumns+` FROM ddts WHERE id = $1 AND deleted_at IS NULL`, id)
}

// GetForUpdate obtiene el documento y bloquea su fila (SELECT FOR UPDATE).
func (r *DdtRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Ddt, error) {
	return r.get(ctx, `SELECT `+ddtColumns+` FROM ddts WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
}

func (r *DdtRepo) get(ctx context.Context, query string, id int64) (*entity.Ddt, error) {
	d, err := scanDdt(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify("get ddt", err)
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Items = items
	return d, nil
}

func (r *DdtRepo) items(ctx context.Context, ddtID int64) ([]entity.DdtItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, ddt_id, product_id, quantity, unit, unit_cost, notes
		FROM ddt_items WHERE ddt_id = $1 ORDER BY position, id`, ddtID)
	if err != nil {
		return nil, classify("list ddt items", err)
	}
	defer rows.Close()
	var list []entity.DdtItem
	for rows.Next() {
		var it entity.DdtItem
		if err := rows.Scan(&it.ID, &it.DdtID, &it.ProductID, &it.Quantity, &it.Unit, &it.UnitCost, &it.Notes); err != nil {
			return nil, classify("scan ddt item", err)
		}
		list = append(list, it)
	}
	return list, classify("list ddt items", rows.Err())
}

// SoftDelete marca deleted_at.
func (r *DdtRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE ddts SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	return classify("soft delete ddt", err)
}

var ddtSortColumns = map[string]string{
	"ddt_date":   "ddt_date",
	"code":       "code",
	"created_at": "created_at",
}

// List lista documentos (sin líneas) y el total que cumple el filtro.
func (r *DdtRepo) List(ctx context.Context, f repository.DdtFilter) ([]*entity.Ddt, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != nil {
		add("kind = $%d", string(*f.Kind))
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.WarehouseID != nil {
		args = append(args, *f.WarehouseID)
		where = append(where, fmt.Sprintf("(from_warehouse_id = $%d OR to_warehouse_id = $%d)", len(args), len(args)))
	}
	if f.SiteID != nil {
		add("site_id = $%d", *f.SiteID)
	}
	if f.SupplierID != nil {
		add("supplier_id = $%d", *f.SupplierID)
	}
	if f.CustomerID != nil {
		add("customer_id = $%d", *f.CustomerID)
	}
	if f.DateFrom != nil {
		add("ddt_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("ddt_date <= $%d", *f.DateTo)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(code ILIKE $%d OR document_number ILIKE $%d)", len(args), len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM ddts WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify("count ddts", err)
	}

	sortCol, ok := ddtSortColumns[f.SortBy]
	if !ok {
		sortCol = "ddt_date"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM ddts WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		ddtColumns, cond, sortCol, dir, dir, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list ddts", err)
	}
	defer rows.Close()
	var list []*entity.Ddt
	for rows.Next() {
		d, err := scanDdt(rows)
		if err != nil {
			return nil, 0, classify("scan ddt", err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list ddts", err)
	}
	return list, total, nil
}
