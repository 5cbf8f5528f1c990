package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ddt-ledger/internal/application/dto"
	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

// InventoryHandler maneja las peticiones HTTP de existencias y del libro de movimientos (protegido).
type InventoryHandler struct {
	svc *inventory.Service
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(svc *inventory.Service) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// Adjust godoc
// @Summary      Ajuste manual de inventario (cantidad con signo)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustRequest  true  "Producto, bodega y cantidad"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/adjust [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	mov, err := h.svc.Adjust(c.UserContext(), inventory.AdjustInput{
		UserID:      GetUserID(c),
		ProductID:   in.ProductID,
		WarehouseID: in.WarehouseID,
		Quantity:    in.Quantity,
		UnitCost:    in.UnitCost,
		Notes:       in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromMovement(mov))
}

// Transfer godoc
// @Summary      Traslado entre bodegas
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "Producto, origen, destino y cantidad"
// @Success      201   {array}   dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfer [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	movs, err := h.svc.Transfer(c.UserContext(), inventory.TransferInput{
		UserID:          GetUserID(c),
		ProductID:       in.ProductID,
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		Quantity:        in.Quantity,
		Notes:           in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromMovements(movs))
}

// Reserve godoc
// @Summary      Reservar cantidad libre
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReservationRequest  true  "Producto, bodega y cantidad"
// @Success      200   {object}  dto.InventoryResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/reserve [post]
func (h *InventoryHandler) Reserve(c *fiber.Ctx) error {
	var in dto.ReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	row, err := h.svc.Reserve(c.UserContext(), entity.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}, in.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInventory(row))
}

// Release godoc
// @Summary      Liberar cantidad reservada
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReservationRequest  true  "Producto, bodega y cantidad"
// @Success      200   {object}  dto.InventoryResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/release [post]
func (h *InventoryHandler) Release(c *fiber.Ctx) error {
	var in dto.ReservationRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	row, err := h.svc.Release(c.UserContext(), entity.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}, in.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInventory(row))
}

// SetMinimum godoc
// @Summary      Fijar stock mínimo
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.MinimumStockRequest  true  "Producto, bodega y mínimo"
// @Success      200   {object}  dto.InventoryResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/minimum [put]
func (h *InventoryHandler) SetMinimum(c *fiber.Ctx) error {
	var in dto.MinimumStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	row, err := h.svc.SetMinimumStock(c.UserContext(), entity.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}, in.MinimumStock)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInventory(row))
}

// GetStock godoc
// @Summary      Existencias de un producto en una bodega
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    path  int  true  "Producto"
// @Param        warehouse_id  path  int  true  "Bodega"
// @Success      200  {object}  dto.InventoryResponse
// @Router       /api/inventory/stock/{product_id}/{warehouse_id} [get]
func (h *InventoryHandler) GetStock(c *fiber.Ctx) error {
	productID, err1 := c.ParamsInt("product_id")
	warehouseID, err2 := c.ParamsInt("warehouse_id")
	if err1 != nil || err2 != nil || productID <= 0 || warehouseID <= 0 {
		return badRequest(c, "INVALID_KEY", "producto y bodega deben ser enteros positivos")
	}
	row, err := h.svc.GetStock(c.UserContext(), entity.StockKey{ProductID: int64(productID), WarehouseID: int64(warehouseID)})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromInventory(row))
}

// ListStock godoc
// @Summary      Listar existencias
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  int  false  "Producto"
// @Param        warehouse_id  query  int  false  "Bodega"
// @Param        limit         query  int  false  "Límite"  default(20)
// @Param        offset        query  int  false  "Offset"  default(0)
// @Success      200  {object}  dto.InventoryListResponse
// @Router       /api/inventory/stock [get]
func (h *InventoryHandler) ListStock(c *fiber.Ctx) error {
	return h.listStock(c, false)
}

// LowStock godoc
// @Summary      Filas en o por debajo del stock mínimo
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query  int  false  "Bodega"
// @Success      200  {object}  dto.InventoryListResponse
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	return h.listStock(c, true)
}

func (h *InventoryHandler) listStock(c *fiber.Ctx, low bool) error {
	p := page(c)
	f := repository.InventoryFilter{LowStock: low, Limit: p.Limit, Offset: p.Offset}
	var err error
	if f.ProductID, err = queryInt64(c, "product_id"); err != nil {
		return writeError(c, err)
	}
	if f.WarehouseID, err = queryInt64(c, "warehouse_id"); err != nil {
		return writeError(c, err)
	}
	rows, err := h.svc.ListStock(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.InventoryListResponse{
		Items: dto.FromInventories(rows),
		Page:  dto.PageResponse{Limit: p.Limit, Offset: p.Offset},
	})
}

// ListMovements godoc
// @Summary      Listar asientos del libro
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  int     false  "Producto"
// @Param        warehouse_id  query  int     false  "Bodega"
// @Param        ddt_id        query  int     false  "Documento"
// @Param        type          query  string  false  "Tipo de movimiento"
// @Param        from          query  string  false  "Desde (RFC3339)"
// @Param        to            query  string  false  "Hasta (RFC3339)"
// @Param        limit         query  int     false  "Límite"  default(20)
// @Param        offset        query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.MovementListResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	p := page(c)
	f := repository.MovementFilter{Limit: p.Limit, Offset: p.Offset}
	ve := &domain.ValidationError{}
	var err error
	if f.ProductID, err = queryInt64(c, "product_id"); err != nil {
		ve.Add("product_id", "debe ser entero")
	}
	if f.WarehouseID, err = queryInt64(c, "warehouse_id"); err != nil {
		ve.Add("warehouse_id", "debe ser entero")
	}
	if f.DdtID, err = queryInt64(c, "ddt_id"); err != nil {
		ve.Add("ddt_id", "debe ser entero")
	}
	if v := c.Query("type"); v != "" {
		t := entity.MovementType(v)
		f.Type = &t
	}
	f.From = parseTimestamp(c.Query("from"), "from", ve)
	f.To = parseTimestamp(c.Query("to"), "to", ve)
	if err := ve.OrNil(); err != nil {
		return writeError(c, err)
	}
	movs, err := h.svc.ListMovements(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.MovementListResponse{
		Items: dto.FromMovements(movs),
		Page:  dto.PageResponse{Limit: p.Limit, Offset: p.Offset},
	})
}

// Verify godoc
// @Summary      Comparar existencias con la suma del libro
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.DriftResponse
// @Router       /api/inventory/verify [get]
func (h *InventoryHandler) Verify(c *fiber.Ctx) error {
	drifts, err := h.svc.Verify(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromDrifts(drifts))
}

func parseTimestamp(raw, field string, ve *domain.ValidationError) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		ve.Add(field, "formato RFC3339")
		return nil
	}
	return &t
}
