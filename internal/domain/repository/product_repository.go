package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// GetByIDs carga también las líneas de bundle de cada producto.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error)
	ListActiveStandard(ctx context.Context) ([]*entity.Product, error)
	UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error
}
