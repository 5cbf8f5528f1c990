package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/dto"
	"github.com/jhoicas/ddt-ledger/internal/domain"
	"github.com/jhoicas/ddt-ledger/internal/domain/entity"
	"github.com/jhoicas/ddt-ledger/internal/domain/repository"
)

// DdtHandler maneja las peticiones HTTP de documentos de transporte (protegido).
type DdtHandler struct {
	svc *ddt.Service
}

// NewDdtHandler construye el handler.
func NewDdtHandler(svc *ddt.Service) *DdtHandler {
	return &DdtHandler{svc: svc}
}

// Create godoc
// @Summary      Crear DDT en borrador
// @Tags         ddts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.DdtRequest  true  "Cabecera y líneas"
// @Success      201   {object}  dto.DdtResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/ddts [post]
func (h *DdtHandler) Create(c *fiber.Ctx) error {
	var in dto.DdtRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	header, items, err := toInput(in)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.svc.Create(c.UserContext(), GetUserID(c), header, items)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromDdt(out))
}

// GetByID godoc
// @Summary      Obtener DDT con líneas y movimientos
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del DDT"
// @Success      200  {object}  dto.DdtResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ddts/{id} [get]
func (h *DdtHandler) GetByID(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "MISSING_ID", "id inválido")
	}
	out, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromDdt(out))
}

// List godoc
// @Summary      Listar DDT
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        kind          query  string  false  "Tipo"
// @Param        status        query  string  false  "Estado"
// @Param        warehouse_id  query  int     false  "Bodega origen o destino"
// @Param        site_id       query  int     false  "Obra"
// @Param        date_from     query  string  false  "Desde (AAAA-MM-DD)"
// @Param        date_to       query  string  false  "Hasta (AAAA-MM-DD)"
// @Param        search        query  string  false  "Código o número de documento"
// @Param        sort          query  string  false  "ddt_date | code | created_at"
// @Param        desc          query  bool    false  "Orden descendente"
// @Param        limit         query  int     false  "Límite"  default(20)
// @Param        offset        query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.DdtListResponse
// @Router       /api/ddts [get]
func (h *DdtHandler) List(c *fiber.Ctx) error {
	f, err := ddtFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	list, total, err := h.svc.List(c.UserContext(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.DdtListResponse{
		Items: dto.FromDdts(list),
		Page:  dto.PageResponse{Limit: f.Limit, Offset: f.Offset, Total: total},
	})
}

// Update godoc
// @Summary      Actualizar DDT en borrador
// @Tags         ddts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int             true  "ID del DDT"
// @Param        body  body  dto.DdtRequest  true  "Cabecera y, opcionalmente, líneas"
// @Success      200   {object}  dto.DdtResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ddts/{id} [put]
func (h *DdtHandler) Update(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "MISSING_ID", "id inválido")
	}
	var in dto.DdtRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	header, items, err := toInput(in)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.svc.Update(c.UserContext(), GetUserID(c), id, header, items)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromDdt(out))
}

// Delete godoc
// @Summary      Borrar DDT en borrador
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del DDT"
// @Success      200  {object}  dto.DeleteResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/ddts/{id} [delete]
func (h *DdtHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "MISSING_ID", "id inválido")
	}
	deleted, err := h.svc.Delete(c.UserContext(), GetUserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.DeleteResponse{Deleted: deleted})
}

// Confirm godoc
// @Summary      Confirmar DDT (draft -> issued) y registrar movimientos
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del DDT"
// @Success      200  {object}  dto.DdtResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/ddts/{id}/confirm [post]
func (h *DdtHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(c, h.svc.Confirm)
}

// Ship godoc
// @Summary      Despachar DDT (issued -> in_transit)
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del DDT"
// @Success      200  {object}  dto.DdtResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/ddts/{id}/ship [post]
func (h *DdtHandler) Ship(c *fiber.Ctx) error {
	return h.transition(c, h.svc.Ship)
}

// Deliver godoc
// @Summary      Marcar DDT como entregado
// @Tags         ddts
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del DDT"
// @Success      200  {object}  dto.DdtResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/ddts/{id}/deliver [post]
func (h *DdtHandler) Deliver(c *fiber.Ctx) error {
	return h.transition(c, h.svc.Deliver)
}

// Cancel godoc
// @Summary      Anular DDT y revertir sus movimientos
// @Tags         ddts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int                   true  "ID del DDT"
// @Param        body  body  dto.CancelDdtRequest  true  "Motivo"
// @Success      200   {object}  dto.DdtResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ddts/{id}/cancel [post]
func (h *DdtHandler) Cancel(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "MISSING_ID", "id inválido")
	}
	var in dto.CancelDdtRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	out, err := h.svc.Cancel(c.UserContext(), GetUserID(c), id, in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromDdt(out))
}

type transitionFunc func(ctx context.Context, actorID, id int64) (*entity.Ddt, error)

func (h *DdtHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	id, ok := paramID(c)
	if !ok {
		return badRequest(c, "MISSING_ID", "id inválido")
	}
	out, err := fn(c.UserContext(), GetUserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromDdt(out))
}

func toInput(in dto.DdtRequest) (ddt.HeaderInput, []ddt.ItemInput, error) {
	ve := &domain.ValidationError{}
	h := ddt.HeaderInput{
		DocumentNumber:  in.DocumentNumber,
		Kind:            entity.DdtKind(in.Kind),
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		SupplierID:      in.SupplierID,
		CustomerID:      in.CustomerID,
		SiteID:          in.SiteID,
		ParentDdtID:     in.ParentDdtID,
		TransportDate:   in.TransportDate,
		CarrierName:     in.CarrierName,
		TrackingNumber:  in.TrackingNumber,
		Notes:           in.Notes,
	}
	if in.DdtDate != "" {
		d, err := time.Parse(dto.DateLayout, in.DdtDate)
		if err != nil {
			ve.Add("ddt_date", "formato AAAA-MM-DD")
		}
		h.DdtDate = d
	}
	h.RentalStartDate = parseOptionalDate(in.RentalStartDate, "rental_start_date", ve)
	h.RentalEndDate = parseOptionalDate(in.RentalEndDate, "rental_end_date", ve)
	if err := ve.OrNil(); err != nil {
		return h, nil, err
	}

	var items []ddt.ItemInput
	if in.Items != nil {
		items = make([]ddt.ItemInput, 0, len(in.Items))
		for _, it := range in.Items {
			items = append(items, ddt.ItemInput{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Unit:      it.Unit,
				UnitCost:  it.UnitCost,
				Notes:     it.Notes,
			})
		}
	}
	return h, items, nil
}

func parseOptionalDate(raw *string, field string, ve *domain.ValidationError) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	t, err := time.Parse(dto.DateLayout, *raw)
	if err != nil {
		ve.Add(field, "formato AAAA-MM-DD")
		return nil
	}
	return &t
}

func ddtFilter(c *fiber.Ctx) (repository.DdtFilter, error) {
	p := page(c)
	f := repository.DdtFilter{
		Search:   c.Query("search"),
		SortBy:   c.Query("sort"),
		SortDesc: c.QueryBool("desc", false),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
	ve := &domain.ValidationError{}
	if v := c.Query("kind"); v != "" {
		k := entity.DdtKind(v)
		if !k.Valid() {
			ve.Add("kind", "tipo inválido")
		}
		f.Kind = &k
	}
	if v := c.Query("status"); v != "" {
		s := entity.DdtStatus(v)
		if !s.Valid() {
			ve.Add("status", "estado inválido")
		}
		f.Status = &s
	}
	var err error
	if f.WarehouseID, err = queryInt64(c, "warehouse_id"); err != nil {
		ve.Add("warehouse_id", "debe ser entero")
	}
	if f.SiteID, err = queryInt64(c, "site_id"); err != nil {
		ve.Add("site_id", "debe ser entero")
	}
	if f.SupplierID, err = queryInt64(c, "supplier_id"); err != nil {
		ve.Add("supplier_id", "debe ser entero")
	}
	if f.CustomerID, err = queryInt64(c, "customer_id"); err != nil {
		ve.Add("customer_id", "debe ser entero")
	}
	from := c.Query("date_from")
	f.DateFrom = parseOptionalDate(&from, "date_from", ve)
	to := c.Query("date_to")
	f.DateTo = parseOptionalDate(&to, "date_to", ve)
	return f, ve.OrNil()
}
