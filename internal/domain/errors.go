package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound             = errors.New("recurso no encontrado")
	ErrInvalidInput         = errors.New("entrada inválida")
	ErrUnauthorized         = errors.New("no autorizado")
	ErrConflict             = errors.New("conflicto con el estado actual")
	ErrInsufficientStock    = errors.New("stock insuficiente")
	ErrInvalidComposition   = errors.New("composición de producto inválida")
	ErrSameWarehouse        = errors.New("la bodega origen y destino son la misma")
	ErrIncompleteCount      = errors.New("conteo incompleto")
	ErrAlreadyFinalized     = errors.New("la sesión de conteo ya fue finalizada")
	ErrInvalidState         = errors.New("transición de estado inválida")
	ErrMissingConfiguration = errors.New("configuración de bodegas incompleta")
	ErrInvalidConfiguration = errors.New("configuración de bodegas inválida")
	ErrConcurrencyConflict  = errors.New("conflicto de concurrencia, reintentar la operación")
)

// InsufficientStockError detalla el primer producto sin stock suficiente.
// errors.Is(err, ErrInsufficientStock) es verdadero.
type InsufficientStockError struct {
	ProductID   string
	WarehouseID string
	Available   int64
	Required    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s: disponible %d, requerido %d", e.ProductID, e.Available, e.Required)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IncompleteCountError indica cuántas líneas de la sesión de conteo siguen sin cantidad física.
type IncompleteCountError struct {
	SessionID string
	Missing   int
}

func (e *IncompleteCountError) Error() string {
	return fmt.Sprintf("conteo incompleto en sesión %s: %d líneas sin contar", e.SessionID, e.Missing)
}

func (e *IncompleteCountError) Is(target error) bool {
	return target == ErrIncompleteCount
}

// CompositionError describe el producto que rompe la composición (bundle anidado, ratio inválido).
type CompositionError struct {
	ProductID string
	Reason    string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composición inválida en %s: %s", e.ProductID, e.Reason)
}

func (e *CompositionError) Is(target error) bool {
	return target == ErrInvalidComposition
}
