package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo pedidos y sus líneas.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create inserta la cabecera y las líneas del pedido.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO orders (id, number, warehouse_id, status, created_by, created_at, updated_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Number, o.WarehouseID, o.Status, nullIfEmpty(o.CreatedBy), o.CreatedAt, o.UpdatedAt, o.CompletedAt, o.CancelledAt)
	queueLines(b, "order_items", "order_id", o.ID, o.Items)
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetForUpdate bloquea el pedido y carga sus líneas; nil si no existe.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	var o entity.Order
	var createdBy *string
	err := r.q.QueryRow(ctx, `
		SELECT id, number, warehouse_id, status, created_by, created_at, updated_at, completed_at, cancelled_at
		FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(
		&o.ID, &o.Number, &o.WarehouseID, &o.Status, &createdBy, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o.CreatedBy = deref(createdBy)
	if o.Items, err = listLines(ctx, r.q, "order_items", "order_id", o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// Update guarda estado y fechas; las líneas se cambian con ReplaceItems.
func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	_, err := r.q.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = $3, completed_at = $4, cancelled_at = $5
		WHERE id = $1`,
		o.ID, o.Status, o.UpdatedAt, o.CompletedAt, o.CancelledAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// ReplaceItems reemplaza todas las líneas del pedido.
func (r *OrderRepo) ReplaceItems(ctx context.Context, orderID string, items []entity.StockLine) error {
	b := &pgx.Batch{}
	b.Queue(`DELETE FROM order_items WHERE order_id = $1`, orderID)
	queueLines(b, "order_items", "order_id", orderID, items)
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("replace order items: %w", err)
	}
	return nil
}

// queueLines encola el insert de líneas (producto, cantidad) en una tabla hija.
// table y parentCol son constantes del paquete, nunca entrada del usuario.
func queueLines(b *pgx.Batch, table, parentCol, parentID string, items []entity.StockLine) {
	for i, it := range items {
		b.Queue(`INSERT INTO `+table+` (`+parentCol+`, position, product_id, quantity) VALUES ($1, $2, $3, $4)`,
			parentID, i, it.ProductID, it.Quantity)
	}
}

func listLines(ctx context.Context, q Querier, table, parentCol, parentID string) ([]entity.StockLine, error) {
	rows, err := q.Query(ctx, `SELECT product_id, quantity FROM `+table+` WHERE `+parentCol+` = $1 ORDER BY position`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	var items []entity.StockLine
	for rows.Next() {
		var it entity.StockLine
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
