package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// OpnameRepository puerto de persistencia de sesiones de conteo físico.
type OpnameRepository interface {
	Create(ctx context.Context, session *entity.OpnameSession) error
	// GetForUpdate bloquea la sesión y carga sus líneas.
	GetForUpdate(ctx context.Context, id string) (*entity.OpnameSession, error)
	GetByID(ctx context.Context, id string) (*entity.OpnameSession, error)
	ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.OpnameSession, error)
	UpdateLine(ctx context.Context, line *entity.OpnameLine) error
	Update(ctx context.Context, session *entity.OpnameSession) error
}
