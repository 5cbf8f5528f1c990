package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/ddt-ledger/internal/domain/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// StockAlerter recibe las filas que quedaron en o por debajo del mínimo tras una operación confirmada.
type StockAlerter interface {
	LowStock(ctx context.Context, rows []*entity.Inventory)
}

// Service operaciones manuales sobre el libro y las existencias (ajustes, traslados, reservas, auditoría).
type Service struct {
	txRunner TxRunner
	retry    RetryPolicy
	alerter  StockAlerter
	log      *logger.Logger
	now      func() time.Time
}

// Option configura el Service.
type Option func(*Service)

// WithRetryPolicy reemplaza la política de reintentos.
func WithRetryPolicy(p RetryPolicy) Option { return func(s *Service) { s.retry = p } }

// WithStockAlerter registra el receptor de alertas de stock bajo.
func WithStockAlerter(a StockAlerter) Option { return func(s *Service) { s.alerter = a } }

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService construye el servicio.
func NewService(txRunner TxRunner, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		txRunner: txRunner,
		retry:    DefaultRetryPolicy(),
		log:      log,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AdjustInput ajuste manual con signo de una fila.
type AdjustInput struct {
	UserID      int64
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal // positivo suma, negativo resta
	UnitCost    *decimal.Decimal
	Notes       string
}

// Adjust registra un asiento adjustment y actualiza la fila. El disponible nunca queda negativo.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (*entity.StockMovement, error) {
	ve := &domain.ValidationError{}
	if in.ProductID <= 0 {
		ve.Add("product_id", "requerido")
	}
	if in.WarehouseID <= 0 {
		ve.Add("warehouse_id", "requerido")
	}
	if in.Quantity.IsZero() {
		ve.Add("quantity", "debe ser distinta de cero")
	} else if msg := domain.ScaleError(in.Quantity); msg != "" {
		ve.Add("quantity", msg)
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		ve.Add("unit_cost", "no puede ser negativo")
	} else if in.UnitCost != nil {
		if msg := domain.ScaleError(*in.UnitCost); msg != "" {
			ve.Add("unit_cost", msg)
		}
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	key := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}
	var (
		mov  *entity.StockMovement
		rows map[entity.StockKey]*entity.Inventory
	)
	err := s.retry.Do(ctx, s.log, "inventory.adjust", func() error {
		return s.txRunner.Run(ctx, func(tx Repos) error {
			var err error
			rows, err = LockRows(ctx, tx, []entity.StockKey{key})
			if err != nil {
				return err
			}
			entries := []domaininv.Entry{{Key: key, Type: entity.MovementTypeAdjustment, Quantity: in.Quantity, UnitCost: in.UnitCost}}
			created, err := Post(ctx, tx, rows, entries, PostMeta{UserID: in.UserID, Date: s.now(), Notes: in.Notes})
			if err != nil {
				return err
			}
			mov = created[0]
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", in.ProductID).Int64("warehouse_id", in.WarehouseID).
		Str("quantity", in.Quantity.String()).Str("code", mov.Code).Msg("ajuste de inventario registrado")
	s.alertLow(ctx, rows)
	return mov, nil
}

// TransferInput traslado manual entre bodegas.
type TransferInput struct {
	UserID          int64
	ProductID       int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Quantity        decimal.Decimal
	Notes           string
}

// Transfer registra el par de asientos transfer (salida en origen, entrada en destino) bloqueando ambas filas en orden.
func (s *Service) Transfer(ctx context.Context, in TransferInput) ([]*entity.StockMovement, error) {
	ve := &domain.ValidationError{}
	if in.ProductID <= 0 {
		ve.Add("product_id", "requerido")
	}
	if in.FromWarehouseID <= 0 || in.ToWarehouseID <= 0 {
		ve.Add("warehouse", "origen y destino requeridos")
	} else if in.FromWarehouseID == in.ToWarehouseID {
		ve.Add("to_warehouse_id", "debe ser distinta del origen")
	}
	if !in.Quantity.IsPositive() {
		ve.Add("quantity", "debe ser mayor que cero")
	} else if msg := domain.ScaleError(in.Quantity); msg != "" {
		ve.Add("quantity", msg)
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	from := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.FromWarehouseID}
	to := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.ToWarehouseID}
	entries := []domaininv.Entry{
		{Key: from, Type: entity.MovementTypeTransfer, Quantity: in.Quantity.Neg()},
		{Key: to, Type: entity.MovementTypeTransfer, Quantity: in.Quantity},
	}
	var (
		movs []*entity.StockMovement
		rows map[entity.StockKey]*entity.Inventory
	)
	err := s.retry.Do(ctx, s.log, "inventory.transfer", func() error {
		return s.txRunner.Run(ctx, func(tx Repos) error {
			var err error
			rows, err = LockRows(ctx, tx, domaininv.LockKeys(entries))
			if err != nil {
				return err
			}
			if err := domaininv.CheckAvailability(rows, domaininv.Requirements(entries)); err != nil {
				return err
			}
			movs, err = Post(ctx, tx, rows, entries, PostMeta{UserID: in.UserID, Date: s.now(), Notes: in.Notes})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("product_id", in.ProductID).Int64("from", in.FromWarehouseID).Int64("to", in.ToWarehouseID).
		Str("quantity", in.Quantity.String()).Msg("traslado registrado")
	s.alertLow(ctx, rows)
	return movs, nil
}

// Reserve aparta cantidad libre de una fila. No genera asientos.
func (s *Service) Reserve(ctx context.Context, key entity.StockKey, qty decimal.Decimal) (*entity.Inventory, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	return s.mutateRow(ctx, "inventory.reserve", key, func(row *entity.Inventory) error {
		if row.Free().LessThan(qty) {
			return &domain.InsufficientStockError{ProductID: key.ProductID, WarehouseID: key.WarehouseID, Required: qty, Available: row.Free()}
		}
		row.QuantityReserved = row.QuantityReserved.Add(qty)
		return nil
	})
}

// Release libera cantidad reservada.
func (s *Service) Release(ctx context.Context, key entity.StockKey, qty decimal.Decimal) (*entity.Inventory, error) {
	if err := checkQuantity(qty); err != nil {
		return nil, err
	}
	return s.mutateRow(ctx, "inventory.release", key, func(row *entity.Inventory) error {
		if row.QuantityReserved.LessThan(qty) {
			return domain.NewValidationError("quantity", "supera la cantidad reservada ("+row.QuantityReserved.String()+")")
		}
		row.QuantityReserved = row.QuantityReserved.Sub(qty)
		return nil
	})
}

// SetMinimumStock fija el stock mínimo de la fila.
func (s *Service) SetMinimumStock(ctx context.Context, key entity.StockKey, minimum decimal.Decimal) (*entity.Inventory, error) {
	if minimum.IsNegative() {
		return nil, domain.NewValidationError("minimum_stock", "no puede ser negativo")
	}
	if msg := domain.ScaleError(minimum); msg != "" {
		return nil, domain.NewValidationError("minimum_stock", msg)
	}
	return s.mutateRow(ctx, "inventory.set_minimum", key, func(row *entity.Inventory) error {
		row.MinimumStock = minimum
		return nil
	})
}

func checkQuantity(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	if msg := domain.ScaleError(qty); msg != "" {
		return domain.NewValidationError("quantity", msg)
	}
	return nil
}

func (s *Service) mutateRow(ctx context.Context, op string, key entity.StockKey, fn func(*entity.Inventory) error) (*entity.Inventory, error) {
	if key.ProductID <= 0 || key.WarehouseID <= 0 {
		return nil, domain.NewValidationError("key", "producto y bodega requeridos")
	}
	var out entity.Inventory
	err := s.retry.Do(ctx, s.log, op, func() error {
		return s.txRunner.Run(ctx, func(tx Repos) error {
			rows, err := LockRows(ctx, tx, []entity.StockKey{key})
			if err != nil {
				return err
			}
			row := rows[key]
			if err := fn(row); err != nil {
				return err
			}
			row.UpdatedAt = s.now()
			if err := tx.Inventory.Save(ctx, row); err != nil {
				return err
			}
			out = *row
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStock fila de existencias (en cero si nunca se movió).
func (s *Service) GetStock(ctx context.Context, key entity.StockKey) (*entity.Inventory, error) {
	var inv *entity.Inventory
	err := s.txRunner.Run(ctx, func(tx Repos) error {
		var err error
		inv, err = tx.Inventory.Get(ctx, key)
		return err
	})
	return inv, err
}

// ListStock existencias filtradas.
func (s *Service) ListStock(ctx context.Context, f repository.InventoryFilter) ([]*entity.Inventory, error) {
	var list []*entity.Inventory
	err := s.txRunner.Run(ctx, func(tx Repos) error {
		var err error
		list, err = tx.Inventory.List(ctx, f)
		return err
	})
	return list, err
}

// ListMovements asientos del libro filtrados.
func (s *Service) ListMovements(ctx context.Context, f repository.MovementFilter) ([]*entity.StockMovement, error) {
	var list []*entity.StockMovement
	err := s.txRunner.Run(ctx, func(tx Repos) error {
		var err error
		list, err = tx.Movements.List(ctx, f)
		return err
	})
	return list, err
}

// Verify compara todas las filas con la suma del libro. No modifica nada.
func (s *Service) Verify(ctx context.Context) ([]domaininv.Drift, error) {
	var drifts []domaininv.Drift
	err := s.txRunner.Run(ctx, func(tx Repos) error {
		rows, err := tx.Inventory.List(ctx, repository.InventoryFilter{})
		if err != nil {
			return err
		}
		balances, err := tx.Movements.Balances(ctx, nil)
		if err != nil {
			return err
		}
		drifts = domaininv.Compare(rows, balances)
		return nil
	})
	return drifts, err
}

// Rebuild reescribe quantity_available desde el libro para las filas con desvío, bajo bloqueo.
// Devuelve los desvíos corregidos.
func (s *Service) Rebuild(ctx context.Context) ([]domaininv.Drift, error) {
	var fixed []domaininv.Drift
	err := s.retry.Do(ctx, s.log, "inventory.rebuild", func() error {
		fixed = nil
		return s.txRunner.Run(ctx, func(tx Repos) error {
			rows, err := tx.Inventory.List(ctx, repository.InventoryFilter{})
			if err != nil {
				return err
			}
			balances, err := tx.Movements.Balances(ctx, nil)
			if err != nil {
				return err
			}
			drifts := domaininv.Compare(rows, balances)
			if len(drifts) == 0 {
				return nil
			}
			keys := make([]entity.StockKey, 0, len(drifts))
			for _, d := range drifts {
				keys = append(keys, d.Key)
			}
			locked, err := LockRows(ctx, tx, keys)
			if err != nil {
				return err
			}
			for _, k := range keys {
				k := k
				bal, err := tx.Movements.Balances(ctx, &k)
				if err != nil {
					return err
				}
				replayed := decimal.Zero
				if len(bal) > 0 {
					replayed = bal[0].Quantity
				}
				row := locked[k]
				if row.QuantityAvailable.Equal(replayed) {
					continue
				}
				fixed = append(fixed, domaininv.Drift{Key: k, Stored: row.QuantityAvailable, Replayed: replayed})
				row.QuantityAvailable = replayed
				row.UpdatedAt = s.now()
				if err := tx.Inventory.Save(ctx, row); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, d := range fixed {
		s.log.Warn().Int64("product_id", d.Key.ProductID).Int64("warehouse_id", d.Key.WarehouseID).
			Str("stored", d.Stored.String()).Str("replayed", d.Replayed.String()).Msg("inventario reconstruido desde el libro")
	}
	return fixed, nil
}

func (s *Service) alertLow(ctx context.Context, rows map[entity.StockKey]*entity.Inventory) {
	if s.alerter == nil {
		return
	}
	var low []*entity.Inventory
	for _, r := range rows {
		if r.MinimumStock.IsPositive() && r.IsLowStock() {
			cp := *r
			low = append(low, &cp)
		}
	}
	if len(low) > 0 {
		s.alerter.LowStock(ctx, low)
	}
}
