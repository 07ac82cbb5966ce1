package inventory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Stock      repository.StockRepository
	Movements  repository.StockMovementRepository
	Products   repository.ProductRepository
	Warehouses repository.WarehouseRepository
	Opname     repository.OpnameRepository
	Orders     repository.OrderRepository
	Sales      repository.SaleRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Commit si fn devuelve nil; Rollback ante cualquier error.
// Los conflictos de bloqueo/serialización se devuelven envueltos en domain.ErrConcurrencyConflict.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos TxRepos) error) error
}

// EventPublisher publica los movimientos ya confirmados (después del commit).
type EventPublisher interface {
	PublishMovements(ctx context.Context, movements []*entity.StockMovement) error
}

type ctxKey string

const userIDKey ctxKey = "user_id"

// WithUserID adjunta al contexto el usuario que origina la operación (queda en CreatedBy).
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext devuelve el usuario del contexto o "" si no hay.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
