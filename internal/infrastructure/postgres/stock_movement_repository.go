package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo libro de movimientos: solo inserción y consulta.
type StockMovementRepo struct {
	q       Querier
	builder squirrel.StatementBuilderType
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{
		q:       q,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const movementColumns = `id, product_id, warehouse_id, movement_type, reference_type, reference_id,
	reference_number, quantity_before, quantity_change, quantity_after, unit_cost, notes, created_by, created_at`

// CreateBatch inserta todos los movimientos de una operación en un solo viaje.
func (r *StockMovementRepo) CreateBatch(ctx context.Context, movements []*entity.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, m := range movements {
		b.Queue(`INSERT INTO stock_movements (`+movementColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			m.ID, m.ProductID, m.WarehouseID, m.MovementType, m.ReferenceType, nullIfEmpty(m.ReferenceID),
			m.ReferenceNumber, m.QuantityBefore, m.QuantityChange, m.QuantityAfter, m.UnitCost,
			m.Notes, nullIfEmpty(m.CreatedBy), m.CreatedAt,
		)
	}
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert stock movements: %w", err)
	}
	return nil
}

// List historial filtrado, más reciente primero.
func (r *StockMovementRepo) List(ctx context.Context, f entity.MovementFilter) ([]*entity.StockMovement, error) {
	q := r.builder.Select(movementColumns).From("stock_movements")
	if f.ProductID != "" {
		q = q.Where(squirrel.Eq{"product_id": f.ProductID})
	}
	if f.WarehouseID != "" {
		q = q.Where(squirrel.Eq{"warehouse_id": f.WarehouseID})
	}
	if f.ReferenceType != "" {
		q = q.Where(squirrel.Eq{"reference_type": f.ReferenceType})
	}
	if f.ReferenceNumber != "" {
		q = q.Where(squirrel.Eq{"reference_number": f.ReferenceNumber})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.To})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build movements query: %w", err)
	}
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		var refID, createdBy *string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.MovementType, &m.ReferenceType, &refID,
			&m.ReferenceNumber, &m.QuantityBefore, &m.QuantityChange, &m.QuantityAfter, &m.UnitCost,
			&m.Notes, &createdBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		m.ReferenceID = deref(refID)
		m.CreatedBy = deref(createdBy)
		list = append(list, &m)
	}
	return list, rows.Err()
}
