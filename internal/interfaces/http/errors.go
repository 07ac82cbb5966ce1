package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// writeError traduce errores de dominio a status + dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: insufficient.Error(),
			Details: dto.InsufficientStockDetail{
				ProductID:   insufficient.ProductID,
				WarehouseID: insufficient.WarehouseID,
				Available:   insufficient.Available,
				Required:    insufficient.Required,
			},
		})
	}
	var incomplete *domain.IncompleteCountError
	if errors.As(err, &incomplete) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INCOMPLETE_COUNT",
			Message: incomplete.Error(),
			Details: fiber.Map{"missing": incomplete.Missing},
		})
	}

	status, code := fiber.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrInvalidComposition):
		status, code = fiber.StatusBadRequest, "INVALID_COMPOSITION"
	case errors.Is(err, domain.ErrSameWarehouse):
		status, code = fiber.StatusBadRequest, "SAME_WAREHOUSE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrAlreadyFinalized):
		status, code = fiber.StatusConflict, "ALREADY_FINALIZED"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = fiber.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrConflict):
		status, code = fiber.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrMissingConfiguration), errors.Is(err, domain.ErrInvalidConfiguration):
		code = "CONFIGURATION"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

// requestContext contexto de la petición con el usuario autenticado (queda en CreatedBy).
func requestContext(c *fiber.Ctx) context.Context {
	return inventory.WithUserID(c.UserContext(), GetUserID(c))
}
