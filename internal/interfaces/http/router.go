package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ddt-ledger/internal/application/ddt"
	"github.com/jhoicas/ddt-ledger/internal/application/inventory"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	DdtService       *ddt.Service
	InventoryService *inventory.Service
	JWTSecret        string
	JWTIssuer        string
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	// Documentos de transporte
	ddts := api.Group("/ddts")
	ddtHandler := NewDdtHandler(deps.DdtService)
	ddts.Post("/", ddtHandler.Create)
	ddts.Get("/", ddtHandler.List)
	ddts.Get("/:id", ddtHandler.GetByID)
	ddts.Put("/:id", ddtHandler.Update)
	ddts.Delete("/:id", ddtHandler.Delete)
	ddts.Post("/:id/confirm", ddtHandler.Confirm)
	ddts.Post("/:id/ship", ddtHandler.Ship)
	ddts.Post("/:id/deliver", ddtHandler.Deliver)
	ddts.Post("/:id/cancel", ddtHandler.Cancel)

	// Existencias y libro de movimientos
	inv := api.Group("/inventory")
	invHandler := NewInventoryHandler(deps.InventoryService)
	inv.Post("/adjust", invHandler.Adjust)
	inv.Post("/transfer", invHandler.Transfer)
	inv.Post("/reserve", invHandler.Reserve)
	inv.Post("/release", invHandler.Release)
	inv.Put("/minimum", invHandler.SetMinimum)
	inv.Get("/stock", invHandler.ListStock)
	inv.Get("/stock/:product_id/:warehouse_id", invHandler.GetStock)
	inv.Get("/low-stock", invHandler.LowStock)
	inv.Get("/movements", invHandler.ListMovements)
	inv.Get("/verify", invHandler.Verify)
}
