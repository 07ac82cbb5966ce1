package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el stock actual de un producto en una bodega; 0 si no hay fila.
func (r *StockRepo) Get(ctx context.Context, productID, warehouseID string) (*entity.Stock, error) {
	query := `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM stock WHERE product_id = $1 AND warehouse_id = $2`
	var s entity.Stock
	err := r.q.QueryRow(ctx, query, productID, warehouseID).Scan(
		&s.ProductID, &s.WarehouseID, &s.Quantity, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Stock{ProductID: productID, WarehouseID: warehouseID}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// ListByWarehouse filas existentes de una bodega ordenadas por producto.
func (r *StockRepo) ListByWarehouse(ctx context.Context, warehouseID string) ([]*entity.Stock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT product_id, warehouse_id, quantity, updated_at
		FROM stock WHERE warehouse_id = $1 ORDER BY product_id`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.Stock
	for rows.Next() {
		var s entity.Stock
		if err := rows.Scan(&s.ProductID, &s.WarehouseID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// LockForUpdate crea en cero las filas que falten y luego las bloquea una a una en el orden recibido.
// El orden fijo de bloqueo evita deadlocks entre operaciones que tocan las mismas filas.
func (r *StockRepo) LockForUpdate(ctx context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Stock, error) {
	out := make(map[entity.StockKey]*entity.Stock, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	insert := &pgx.Batch{}
	for _, k := range keys {
		insert.Queue(`
			INSERT INTO stock (product_id, warehouse_id, quantity, updated_at)
			VALUES ($1, $2, 0, now())
			ON CONFLICT (product_id, warehouse_id) DO NOTHING`, k.ProductID, k.WarehouseID)
	}
	if err := r.q.SendBatch(ctx, insert).Close(); err != nil {
		return nil, fmt.Errorf("ensure stock rows: %w", err)
	}

	for _, k := range keys {
		var s entity.Stock
		err := r.q.QueryRow(ctx, `
			SELECT product_id, warehouse_id, quantity, updated_at
			FROM stock WHERE product_id = $1 AND warehouse_id = $2
			FOR UPDATE`, k.ProductID, k.WarehouseID).Scan(
			&s.ProductID, &s.WarehouseID, &s.Quantity, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("lock stock %s/%s: %w", k.ProductID, k.WarehouseID, err)
		}
		out[k] = &s
	}
	return out, nil
}

// Save persiste las cantidades de filas ya bloqueadas.
func (r *StockRepo) Save(ctx context.Context, levels []*entity.Stock) error {
	if len(levels) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, l := range levels {
		b.Queue(`
			UPDATE stock SET quantity = $3, updated_at = $4
			WHERE product_id = $1 AND warehouse_id = $2`,
			l.ProductID, l.WarehouseID, l.Quantity, l.UpdatedAt)
	}
	br := r.q.SendBatch(ctx, b)
	defer br.Close()
	for _, l := range levels {
		cmd, err := br.Exec()
		if err != nil {
			return fmt.Errorf("save stock %s/%s: %w", l.ProductID, l.WarehouseID, err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("save stock %s/%s: fila no bloqueada", l.ProductID, l.WarehouseID)
		}
	}
	return br.Close()
}
