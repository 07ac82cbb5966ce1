package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockRepository define el puerto para consultar/actualizar stock por bodega+producto.
// LockForUpdate y Save solo se usan dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	// Get devuelve el stock actual; cantidad 0 si la fila no existe.
	Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error)
	// ListByWarehouse devuelve las filas existentes de una bodega.
	ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Stock, error)
	// LockForUpdate crea las filas ausentes con cantidad 0 y las bloquea en el orden recibido
	// (el llamador las entrega ordenadas por producto y bodega).
	LockForUpdate(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Stock, error)
	// Save persiste las cantidades de filas previamente bloqueadas.
	Save(ctx context.Context, levels []*entity.Stock) error
}
