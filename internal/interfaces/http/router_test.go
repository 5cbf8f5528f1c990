package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/dto"
	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
	apphttp "github.com/jhoicas/ddt-ledger/internal/interfaces/http"
	"github.com/jhoicas/ddt-ledger/internal/testutil"
	"github.com/jhoicas/ddt-ledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

type apiFixture struct {
	app   *fiber.App
	store *testutil.Store
	token string
}

// newAPI router completo sobre el almacén en memoria, sin reintentos.
func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	log := logger.Nop()
	store := testutil.NewStore()
	retry := inventory.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		DdtService:       ddt.NewService(store, log, ddt.WithRetryPolicy(retry)),
		InventoryService: inventory.NewService(store, log, inventory.WithRetryPolicy(retry)),
		JWTSecret:        testJWTSecret,
		JWTIssuer:        testIssuer,
	})
	return &apiFixture{app: app, store: store, token: bearer(t)}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", f.token)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
}

func (f *apiFixture) adjust(t *testing.T, product, warehouse int64, qty int) {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/inventory/adjust", map[string]any{
		"product_id": product, "warehouse_id": warehouse, "quantity": qty,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func outgoingBody(qty int) map[string]any {
	return map[string]any{
		"document_number":   "DN-100",
		"kind":              "outgoing",
		"from_warehouse_id": 1,
		"customer_id":       9,
		"ddt_date":          "2026-03-10",
		"items": []map[string]any{
			{"product_id": 100, "quantity": qty, "unit": "pz"},
		},
	}
}

func (f *apiFixture) createDraft(t *testing.T, qty int) dto.DdtResponse {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/ddts", outgoingBody(qty))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var out dto.DdtResponse
	decodeInto(t, resp, &out)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Documentos de transporte
// ──────────────────────────────────────────────────────────────────────────────

// Caso 1: ciclo completo vía HTTP; la confirmación descuenta stock.
func TestDdtAPI_CicloCompleto(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 50)

	created := f.createDraft(t, 20)
	assert.Equal(t, "draft", created.Status)
	assert.Regexp(t, `^DDT-OUT-\d{4}-0001$`, created.Code)
	assert.EqualValues(t, testUserID, created.CreatedBy)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/confirm", created.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var confirmed dto.DdtResponse
	decodeInto(t, resp, &confirmed)
	assert.Equal(t, "issued", confirmed.Status)
	require.Len(t, confirmed.Movements, 1)
	assert.Equal(t, "-20", confirmed.Movements[0].Quantity.String())
	assert.Equal(t, "30", f.store.Available(100, 1).String())

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/ship", created.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/deliver", created.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got dto.DdtResponse
	decodeInto(t, f.do(t, http.MethodGet, fmt.Sprintf("/api/ddts/%d", created.ID), nil), &got)
	assert.Equal(t, "delivered", got.Status)
	assert.NotNil(t, got.DeliveredAt)
}

// Caso 2: validación → 400 con campos.
func TestDdtAPI_Validacion(t *testing.T) {
	f := newAPI(t)
	body := outgoingBody(5)
	body["document_number"] = ""
	body["items"] = []map[string]any{}

	resp := f.do(t, http.MethodPost, "/api/ddts", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out dto.ErrorResponse
	decodeInto(t, resp, &out)
	assert.Equal(t, "VALIDATION", out.Code)
	assert.Contains(t, out.Fields, "document_number")
	assert.Contains(t, out.Fields, "items")
}

// Caso 3: fecha con formato incorrecto → 400.
func TestDdtAPI_FechaInvalida(t *testing.T) {
	f := newAPI(t)
	body := outgoingBody(5)
	body["ddt_date"] = "10/03/2026"

	resp := f.do(t, http.MethodPost, "/api/ddts", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out dto.ErrorResponse
	decodeInto(t, resp, &out)
	assert.Contains(t, out.Fields, "ddt_date")
}

// Caso 4: stock insuficiente → 409 y el documento sigue en borrador.
func TestDdtAPI_StockInsuficiente(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 5)
	created := f.createDraft(t, 20)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/confirm", created.ID), nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var out dto.ErrorResponse
	decodeInto(t, resp, &out)
	assert.Equal(t, "INSUFFICIENT_STOCK", out.Code)
	assert.Equal(t, "5", f.store.Available(100, 1).String())
}

// Caso 5: transición inválida → 409 INVALID_TRANSITION.
func TestDdtAPI_TransicionInvalida(t *testing.T) {
	f := newAPI(t)
	created := f.createDraft(t, 1)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/deliver", created.ID), nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var out dto.ErrorResponse
	decodeInto(t, resp, &out)
	assert.Equal(t, "INVALID_TRANSITION", out.Code)
}

// Caso 6: conflicto de concurrencia sin reintentos → 503 con Retry-After.
func TestDdtAPI_ConflictoConcurrencia(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 50)
	created := f.createDraft(t, 10)
	f.store.FailNextCommits(1)

	resp := f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/confirm", created.ID), nil)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "50", f.store.Available(100, 1).String())
}

// Caso 7: id inexistente → 404; id no numérico → 400.
func TestDdtAPI_NoEncontrado(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodGet, "/api/ddts/999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/ddts/abc", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// Caso 8: borrado de borrador; el segundo borrado da 404.
func TestDdtAPI_Borrado(t *testing.T) {
	f := newAPI(t)
	created := f.createDraft(t, 1)
	path := fmt.Sprintf("/api/ddts/%d", created.ID)

	resp := f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out dto.DeleteResponse
	decodeInto(t, resp, &out)
	assert.True(t, out.Deleted)

	resp = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// Caso 9: cancelación sin motivo → 409 INVALID_TRANSITION; con motivo revierte el stock.
func TestDdtAPI_Cancelar(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 50)
	created := f.createDraft(t, 10)
	path := fmt.Sprintf("/api/ddts/%d", created.ID)
	require.Equal(t, fiber.StatusOK, f.do(t, http.MethodPost, path+"/confirm", nil).StatusCode)

	resp := f.do(t, http.MethodPost, path+"/cancel", map[string]any{"reason": ""})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var rejected dto.ErrorResponse
	decodeInto(t, resp, &rejected)
	assert.Equal(t, "INVALID_TRANSITION", rejected.Code)

	resp = f.do(t, http.MethodPost, path+"/cancel", map[string]any{"reason": "cliente anuló pedido"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out dto.DdtResponse
	decodeInto(t, resp, &out)
	assert.Equal(t, "cancelled", out.Status)
	assert.Equal(t, "50", f.store.Available(100, 1).String())
}

// Caso 10: listado filtrado por estado.
func TestDdtAPI_ListarPorEstado(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 50)
	first := f.createDraft(t, 1)
	f.createDraft(t, 2)
	require.Equal(t, fiber.StatusOK, f.do(t, http.MethodPost, fmt.Sprintf("/api/ddts/%d/confirm", first.ID), nil).StatusCode)

	var out dto.DdtListResponse
	decodeInto(t, f.do(t, http.MethodGet, "/api/ddts?status=draft", nil), &out)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "draft", out.Items[0].Status)
	assert.Equal(t, 1, out.Page.Total)

	resp := f.do(t, http.MethodGet, "/api/ddts?warehouse_id=uno", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Existencias
// ──────────────────────────────────────────────────────────────────────────────

// Caso 11: ajuste negativo mayor al disponible → 409.
func TestInventoryAPI_AjusteNegativo(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 5)

	resp := f.do(t, http.MethodPost, "/api/inventory/adjust", map[string]any{
		"product_id": 100, "warehouse_id": 1, "quantity": -10,
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	// más decimales que NUMERIC(14,4) → 400, no 500
	resp = f.do(t, http.MethodPost, "/api/inventory/adjust", map[string]any{
		"product_id": 100, "warehouse_id": 1, "quantity": "0.00001",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out dto.ErrorResponse
	decodeInto(t, resp, &out)
	assert.Contains(t, out.Fields, "quantity")
}

// Caso 12: consulta de fila y verificación del libro.
func TestInventoryAPI_StockYVerify(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 12)

	var row dto.InventoryResponse
	decodeInto(t, f.do(t, http.MethodGet, "/api/inventory/stock/100/1", nil), &row)
	assert.Equal(t, "12", row.QuantityAvailable.String())
	assert.Equal(t, "12", row.QuantityFree.String())

	resp := f.do(t, http.MethodGet, "/api/inventory/stock/0/1", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var drifts []dto.DriftResponse
	decodeInto(t, f.do(t, http.MethodGet, "/api/inventory/verify", nil), &drifts)
	assert.Empty(t, drifts)
}

// Caso 13: listado del libro filtrado por tipo.
func TestInventoryAPI_Movimientos(t *testing.T) {
	f := newAPI(t)
	f.adjust(t, 100, 1, 10)
	f.adjust(t, 100, 1, -3)

	var out dto.MovementListResponse
	decodeInto(t, f.do(t, http.MethodGet, "/api/inventory/movements?product_id=100", nil), &out)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "-3", out.Items[0].Quantity.String(), "más reciente primero")

	resp := f.do(t, http.MethodGet, "/api/inventory/movements?from=ayer", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// Caso 14: sin token las rutas de la API responden 401.
func TestAPI_RequiereToken(t *testing.T) {
	f := newAPI(t)
	f.token = ""

	resp := f.do(t, http.MethodGet, "/api/ddts", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
