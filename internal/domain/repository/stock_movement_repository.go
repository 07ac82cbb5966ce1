package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockMovementRepository puerto del libro de movimientos (solo inserción).
type StockMovementRepository interface {
	CreateBatch(ctx context.Context, movements []*entity.StockMovement) error
	List(ctx context.Context, filter entity.MovementFilter) ([]*entity.StockMovement, error)
}
