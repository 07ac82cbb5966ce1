package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SaleRepository puerto de persistencia de ventas POS y sus devoluciones.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
	Update(ctx context.Context, sale *entity.Sale) error
	CreateReturn(ctx context.Context, ret *entity.SaleReturn) error
	// ReturnedQuantities suma lo ya devuelto por producto para una venta.
	ReturnedQuantities(ctx context.Context, saleID string) (map[string]int64, error)
}
