// Package sales contiene los flujos que consumen el motor de stock: pedidos, ventas POS y devoluciones.
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// OrderUseCase pedidos que reservan stock al crearse.
// pending -> completed no mueve stock; pending -> cancelled restaura; editar reemplaza la reserva.
type OrderUseCase struct {
	engine *inventory.Engine
}

// NewOrderUseCase construye el caso de uso de pedidos.
func NewOrderUseCase(engine *inventory.Engine) *OrderUseCase {
	return &OrderUseCase{engine: engine}
}

// Create registra el pedido y reserva sus líneas en la misma transacción.
func (uc *OrderUseCase) Create(ctx context.Context, warehouseID string, items []entity.StockLine) (*entity.Order, error) {
	now := time.Now().UTC()
	order := &entity.Order{
		ID:          uuid.New().String(),
		Number:      domaininv.NewReferenceNumber(domaininv.RefPrefixOrder, now),
		WarehouseID: uc.engine.Config().Resolve(warehouseID),
		Status:      entity.OrderStatusPending,
		Items:       items,
		CreatedBy:   inventory.UserIDFromContext(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := uc.engine.Execute(ctx, "order_create", func(repos inventory.TxRepos) (*inventory.Result, error) {
		res, err := uc.engine.ReserveInTx(ctx, repos, items, order.WarehouseID, orderRef(order))
		if err != nil {
			return nil, err
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateItems restaura las líneas anteriores y reserva las nuevas; solo en pending.
func (uc *OrderUseCase) UpdateItems(ctx context.Context, orderID string, items []entity.StockLine) (*entity.Order, error) {
	return uc.transition(ctx, "order_update", orderID, func(repos inventory.TxRepos, o *entity.Order) (*inventory.Result, error) {
		res, err := uc.engine.ReplaceInTx(ctx, repos, o.Items, items, o.WarehouseID, orderRef(o))
		if err != nil {
			return nil, err
		}
		if err := repos.Orders.ReplaceItems(ctx, o.ID, items); err != nil {
			return nil, err
		}
		o.Items = items
		return res, nil
	})
}

// Complete cierra el pedido; el stock ya se reservó al crearlo.
func (uc *OrderUseCase) Complete(ctx context.Context, orderID string) (*entity.Order, error) {
	return uc.transition(ctx, "order_complete", orderID, func(_ inventory.TxRepos, o *entity.Order) (*inventory.Result, error) {
		now := time.Now().UTC()
		o.Status = entity.OrderStatusCompleted
		o.CompletedAt = &now
		return &inventory.Result{Reference: orderRef(o)}, nil
	})
}

// Cancel devuelve al stock todas las líneas del pedido.
func (uc *OrderUseCase) Cancel(ctx context.Context, orderID string) (*entity.Order, error) {
	return uc.transition(ctx, "order_cancel", orderID, func(repos inventory.TxRepos, o *entity.Order) (*inventory.Result, error) {
		res, err := uc.engine.RestoreInTx(ctx, repos, o.Items, o.WarehouseID, orderRef(o))
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		o.Status = entity.OrderStatusCancelled
		o.CancelledAt = &now
		return res, nil
	})
}

// transition bloquea el pedido, exige pending, aplica fn y guarda el estado.
func (uc *OrderUseCase) transition(
	ctx context.Context,
	op, orderID string,
	fn func(repos inventory.TxRepos, o *entity.Order) (*inventory.Result, error),
) (*entity.Order, error) {
	var order *entity.Order
	_, err := uc.engine.Execute(ctx, op, func(repos inventory.TxRepos) (*inventory.Result, error) {
		o, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o == nil {
			return nil, fmt.Errorf("pedido %s: %w", orderID, domain.ErrNotFound)
		}
		if o.Status != entity.OrderStatusPending {
			return nil, fmt.Errorf("pedido %s en estado %s: %w", o.Number, o.Status, domain.ErrInvalidState)
		}
		res, err := fn(repos, o)
		if err != nil {
			return nil, err
		}
		o.UpdatedAt = time.Now().UTC()
		if err := repos.Orders.Update(ctx, o); err != nil {
			return nil, err
		}
		order = o
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func orderRef(o *entity.Order) entity.Reference {
	return entity.Reference{Type: entity.ReferenceTypeSale, ID: o.ID, Number: o.Number}
}
