package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo ventas POS y devoluciones.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create inserta la venta y sus líneas.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO sales (id, number, warehouse_id, status, void_reason, created_by, created_at, voided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Number, s.WarehouseID, s.Status, s.VoidReason, nullIfEmpty(s.CreatedBy), s.CreatedAt, s.VoidedAt)
	queueLines(b, "sale_items", "sale_id", s.ID, s.Items)
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

// GetForUpdate bloquea la venta y carga sus líneas; nil si no existe.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	var s entity.Sale
	var createdBy *string
	err := r.q.QueryRow(ctx, `
		SELECT id, number, warehouse_id, status, void_reason, created_by, created_at, voided_at
		FROM sales WHERE id = $1 FOR UPDATE`, id).Scan(
		&s.ID, &s.Number, &s.WarehouseID, &s.Status, &s.VoidReason, &createdBy, &s.CreatedAt, &s.VoidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	s.CreatedBy = deref(createdBy)
	if s.Items, err = listLines(ctx, r.q, "sale_items", "sale_id", s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update guarda estado y datos de anulación.
func (r *SaleRepo) Update(ctx context.Context, s *entity.Sale) error {
	_, err := r.q.Exec(ctx, `
		UPDATE sales SET status = $2, void_reason = $3, voided_at = $4 WHERE id = $1`,
		s.ID, s.Status, s.VoidReason, s.VoidedAt)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	return nil
}

// CreateReturn inserta la devolución y sus líneas.
func (r *SaleRepo) CreateReturn(ctx context.Context, ret *entity.SaleReturn) error {
	b := &pgx.Batch{}
	b.Queue(`
		INSERT INTO sale_returns (id, sale_id, number, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ret.ID, ret.SaleID, ret.Number, ret.Reason, nullIfEmpty(ret.CreatedBy), ret.CreatedAt)
	queueLines(b, "sale_return_items", "return_id", ret.ID, ret.Items)
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert sale return: %w", err)
	}
	return nil
}

// ReturnedQuantities suma por producto lo ya devuelto de una venta.
func (r *SaleRepo) ReturnedQuantities(ctx context.Context, saleID string) (map[string]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT i.product_id, SUM(i.quantity)::bigint
		FROM sale_return_items i
		JOIN sale_returns r ON r.id = i.return_id
		WHERE r.sale_id = $1
		GROUP BY i.product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("returned quantities: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var productID string
		var qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("scan returned quantity: %w", err)
		}
		out[productID] = qty
	}
	return out, rows.Err()
}
