package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/opname"
	"github.com/jhoicas/stock-ledger/internal/application/sales"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine    *inventory.Engine
	Queries   *inventory.QueryUseCase
	OpnameUC  *opname.UseCase
	OrderUC   *sales.OrderUseCase
	SaleUC    *sales.SaleUseCase
	JWTSecret string
}

// Router registra las rutas de la API. Todo bajo /api requiere Bearer Token.
// Bodega (ajustes, compras, transferencias, conteos): admin o bodeguero.
// Pedidos y ventas: admin o vendedor. Consultas: cualquier rol.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	warehouseStaff := RequireRole(RoleAdmin, RoleBodeguero)
	salesStaff := RequireRole(RoleAdmin, RoleVendedor)
	anyRole := RequireRole(RoleAdmin, RoleBodeguero, RoleVendedor)

	invGroup := api.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Engine, deps.Queries)
	invGroup.Get("/stock/:product_id", anyRole, inventoryHandler.GetStock)
	invGroup.Get("/movements", anyRole, inventoryHandler.ListMovements)
	invGroup.Post("/transfers", warehouseStaff, inventoryHandler.Transfer)
	invGroup.Post("/adjustments", warehouseStaff, inventoryHandler.Adjust)
	invGroup.Post("/adjustments/batch", warehouseStaff, inventoryHandler.BatchAdjust)
	invGroup.Post("/receipts", warehouseStaff, inventoryHandler.Receive)

	opnameGroup := api.Group("/opname", warehouseStaff)
	opnameHandler := NewOpnameHandler(deps.OpnameUC)
	opnameGroup.Post("/", opnameHandler.Start)
	opnameGroup.Get("/", opnameHandler.List)
	opnameGroup.Get("/:id", opnameHandler.Get)
	opnameGroup.Put("/:id/lines/:line_id", opnameHandler.RecordCount)
	opnameGroup.Post("/:id/finalize", opnameHandler.Finalize)
	opnameGroup.Delete("/:id", opnameHandler.Delete)

	orders := api.Group("/orders", salesStaff)
	orderHandler := NewOrderHandler(deps.OrderUC)
	orders.Post("/", orderHandler.Create)
	orders.Put("/:id/items", orderHandler.UpdateItems)
	orders.Post("/:id/complete", orderHandler.Complete)
	orders.Post("/:id/cancel", orderHandler.Cancel)

	salesGroup := api.Group("/sales", salesStaff)
	saleHandler := NewSaleHandler(deps.SaleUC)
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Post("/:id/void", saleHandler.Void)
	salesGroup.Post("/:id/returns", saleHandler.Return)
}
