package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/opname"
)

// OpnameHandler sesiones de conteo físico (protegido).
type OpnameHandler struct {
	uc *opname.UseCase
}

// NewOpnameHandler construye el handler.
func NewOpnameHandler(uc *opname.UseCase) *OpnameHandler {
	return &OpnameHandler{uc: uc}
}

// Start godoc
// @Summary      Iniciar sesión de conteo
// @Tags         opname
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StartOpnameRequest  true  "bodega (vacío = por defecto) y notas"
// @Success      201  {object}  dto.OpnameSessionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/opname [post]
func (h *OpnameHandler) Start(c *fiber.Ctx) error {
	var in dto.StartOpnameRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	s, err := h.uc.Start(requestContext(c), in.WarehouseID, in.Notes)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromOpnameSession(s))
}

// List godoc
// @Summary      Listar sesiones de conteo
// @Tags         opname
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query  string  false  "Filtrar por bodega"
// @Param        limit         query  int     false  "Máx. 100"
// @Param        offset        query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.OpnameListResponse
// @Router       /api/opname [get]
func (h *OpnameHandler) List(c *fiber.Ctx) error {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	page.DefaultPage()
	list, err := h.uc.List(c.UserContext(), c.Query("warehouse_id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.OpnameSessionResponse, 0, len(list))
	for _, s := range list {
		items = append(items, dto.FromOpnameSession(s))
	}
	return c.JSON(dto.OpnameListResponse{Items: items, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}})
}

// Get godoc
// @Summary      Obtener sesión de conteo con sus líneas
// @Tags         opname
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.OpnameSessionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/opname/{id} [get]
func (h *OpnameHandler) Get(c *fiber.Ctx) error {
	s, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromOpnameSession(s))
}

// RecordCount godoc
// @Summary      Registrar cantidad física de una línea
// @Tags         opname
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "ID de la sesión"
// @Param        line_id  path  string                  true  "ID de la línea"
// @Param        body     body  dto.RecordCountRequest  true  "cantidad contada"
// @Success      200  {object}  dto.OpnameLineResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/opname/{id}/lines/{line_id} [put]
func (h *OpnameHandler) RecordCount(c *fiber.Ctx) error {
	var in dto.RecordCountRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	line, err := h.uc.RecordCount(requestContext(c), c.Params("id"), c.Params("line_id"), in.PhysicalQty)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromOpnameLine(line))
}

// Finalize godoc
// @Summary      Finalizar conteo y aplicar diferencias
// @Tags         opname
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.OpnameSessionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/opname/{id}/finalize [post]
func (h *OpnameHandler) Finalize(c *fiber.Ctx) error {
	s, err := h.uc.Finalize(requestContext(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromOpnameSession(s))
}

// Delete godoc
// @Summary      Borrar sesión de conteo (lógico)
// @Tags         opname
// @Security     Bearer
// @Param        id  path  string  true  "ID de la sesión"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/opname/{id} [delete]
func (h *OpnameHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(requestContext(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
