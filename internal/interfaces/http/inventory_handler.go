package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// InventoryHandler consultas de stock y operaciones directas del motor (protegido).
type InventoryHandler struct {
	engine *inventory.Engine
	query  *inventory.QueryUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(engine *inventory.Engine, query *inventory.QueryUseCase) *InventoryHandler {
	return &InventoryHandler{engine: engine, query: query}
}

// GetStock godoc
// @Summary      Stock actual de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id    path   string  true   "ID del producto"
// @Param        warehouse_id  query  string  false  "Bodega; vacío = bodega por defecto"
// @Success      200  {object}  dto.StockResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/stock/{product_id} [get]
func (h *InventoryHandler) GetStock(c *fiber.Ctx) error {
	st, err := h.query.GetQuantity(c.UserContext(), c.Params("product_id"), c.Query("warehouse_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromStock(st))
}

// ListMovements godoc
// @Summary      Historial de movimientos
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        product_id        query  string  false  "Filtrar por producto"
// @Param        warehouse_id      query  string  false  "Filtrar por bodega"
// @Param        reference_type    query  string  false  "sale, purchase, adjustment, transfer, return, opname"
// @Param        reference_number  query  string  false  "Número de referencia"
// @Param        from              query  string  false  "RFC3339"
// @Param        to                query  string  false  "RFC3339"
// @Param        limit             query  int     false  "Máx. 500"
// @Param        offset            query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	filter := entity.MovementFilter{
		ProductID:       c.Query("product_id"),
		WarehouseID:     c.Query("warehouse_id"),
		ReferenceType:   c.Query("reference_type"),
		ReferenceNumber: c.Query("reference_number"),
		Limit:           c.QueryInt("limit", 0),
		Offset:          c.QueryInt("offset", 0),
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: name + " debe ser RFC3339"})
		}
		*dst = &t
	}
	list, err := h.query.ListMovements(c.UserContext(), filter)
	if err != nil {
		return writeError(c, err)
	}
	page := inventory.NormalizeMovementFilter(filter)
	return c.JSON(dto.MovementListResponse{
		Items: dto.FromMovements(list),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Transfer godoc
// @Summary      Transferir stock entre bodegas
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferRequest  true  "producto, origen, destino y cantidad"
// @Success      201  {object}  dto.OperationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.Transfer(requestContext(c), inventory.TransferInput{
		ProductID:       in.ProductID,
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		Quantity:        in.Quantity,
		Notes:           in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromOperation(res.Reference, res.Movements))
}

// Adjust godoc
// @Summary      Ajuste manual de stock
// @Description  mode add/subtract/set; reason damaged o expired envía lo descontado a la bodega de rechazo.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustRequest  true  "producto, bodega, modo, cantidad y motivo"
// @Success      201  {object}  dto.OperationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/inventory/adjustments [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	adj, err := toAdjustInput(in)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.engine.Adjust(requestContext(c), adj)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromOperation(res.Reference, res.Movements))
}

// BatchAdjust godoc
// @Summary      Ajustes en lote (todo o nada)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.BatchAdjustRequest  true  "items de ajuste"
// @Success      201  {object}  dto.OperationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/inventory/adjustments/batch [post]
func (h *InventoryHandler) BatchAdjust(c *fiber.Ctx) error {
	var in dto.BatchAdjustRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if len(in.Items) == 0 {
		return writeError(c, domain.ErrInvalidInput)
	}
	items := make([]inventory.AdjustInput, 0, len(in.Items))
	for _, it := range in.Items {
		adj, err := toAdjustInput(it)
		if err != nil {
			return writeError(c, err)
		}
		items = append(items, adj)
	}
	res, err := h.engine.Batch(requestContext(c), items)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromOperation(res.Reference, res.Movements))
}

// Receive godoc
// @Summary      Entrada por compra
// @Description  Suma stock y recalcula el costo promedio ponderado del producto.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiptRequest  true  "producto, bodega, cantidad y costo unitario"
// @Success      201  {object}  dto.OperationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/receipts [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiptRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	res, err := h.engine.Receive(requestContext(c), inventory.ReceiveInput{
		ProductID:       in.ProductID,
		WarehouseID:     in.WarehouseID,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		ReferenceID:     in.ReferenceID,
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromOperation(res.Reference, res.Movements))
}

// toAdjustInput valida modo y motivo en el borde.
func toAdjustInput(in dto.AdjustRequest) (inventory.AdjustInput, error) {
	mode, err := domaininv.ParseAdjustMode(in.Mode)
	if err != nil {
		return inventory.AdjustInput{}, err
	}
	reason, err := domaininv.ParseAdjustmentReason(in.Reason)
	if err != nil {
		return inventory.AdjustInput{}, err
	}
	return inventory.AdjustInput{
		ProductID:   in.ProductID,
		WarehouseID: in.WarehouseID,
		Mode:        mode,
		Quantity:    in.Quantity,
		Reason:      reason,
		Notes:       in.Notes,
	}, nil
}
