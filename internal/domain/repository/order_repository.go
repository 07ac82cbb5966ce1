package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// OrderRepository puerto de persistencia de pedidos.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	Update(ctx context.Context, order *entity.Order) error
	ReplaceItems(ctx context.Context, orderID string, items []entity.StockLine) error
}
