package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// QueryUseCase read model del libro: cantidad actual e historial de movimientos. Nunca muta.
type QueryUseCase struct {
	stockRepo     repository.StockRepository
	movementRepo  repository.StockMovementRepository
	warehouseRepo repository.WarehouseRepository
	cfg           WarehouseConfig
}

// NewQueryUseCase construye el caso de uso de consultas.
func NewQueryUseCase(
	stockRepo repository.StockRepository,
	movementRepo repository.StockMovementRepository,
	warehouseRepo repository.WarehouseRepository,
	cfg WarehouseConfig,
) *QueryUseCase {
	return &QueryUseCase{
		stockRepo:     stockRepo,
		movementRepo:  movementRepo,
		warehouseRepo: warehouseRepo,
		cfg:           cfg,
	}
}

// GetQuantity cantidad actual; 0 si la fila no existe. warehouseID vacío = bodega por defecto.
func (uc *QueryUseCase) GetQuantity(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	if productID == "" {
		return nil, domain.ErrInvalidInput
	}
	id := uc.cfg.Resolve(warehouseID)
	wh, err := uc.warehouseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, fmt.Errorf("bodega %s: %w", id, domain.ErrNotFound)
	}
	return uc.stockRepo.Get(ctx, productID, id)
}

// ListMovements historial filtrado, más reciente primero.
func (uc *QueryUseCase) ListMovements(ctx context.Context, filter entity.MovementFilter) ([]*entity.StockMovement, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("rango de fechas: %w", domain.ErrInvalidInput)
	}
	return uc.movementRepo.List(ctx, NormalizeMovementFilter(filter))
}

// NormalizeMovementFilter aplica el límite por defecto y el máximo de página.
func NormalizeMovementFilter(filter entity.MovementFilter) entity.MovementFilter {
	if filter.Limit <= 0 {
		filter.Limit = defaultMovementLimit
	}
	if filter.Limit > maxMovementLimit {
		filter.Limit = maxMovementLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
