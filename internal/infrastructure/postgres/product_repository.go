package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, sku, name, kind, parent_id, conversion_ratio, cost, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	var parentID *string
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Kind, &parentID, &p.ConversionRatio,
		&p.Cost, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ParentID = deref(parentID)
	return &p, nil
}

// GetByID obtiene un producto con sus líneas de bundle; nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	if p.IsBundle() {
		items, err := r.bundleItems(ctx, []string{p.ID})
		if err != nil {
			return nil, err
		}
		p.BundleItems = items[p.ID]
	}
	return p, nil
}

// GetByIDs carga los productos pedidos (los inexistentes no aparecen en el mapa).
func (r *ProductRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	var bundles []string
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
		if p.IsBundle() {
			bundles = append(bundles, p.ID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	if len(bundles) > 0 {
		items, err := r.bundleItems(ctx, bundles)
		if err != nil {
			return nil, err
		}
		for _, id := range bundles {
			out[id].BundleItems = items[id]
		}
	}
	return out, nil
}

// ListActiveStandard productos estándar activos; base de la foto de un conteo físico.
func (r *ProductRepo) ListActiveStandard(ctx context.Context) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE active AND kind = $1 ORDER BY id`, entity.ProductKindStandard)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// UpdateCost actualiza solo el costo del producto (usado por el motor de inventario).
func (r *ProductRepo) UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET cost = $2, updated_at = now() WHERE id = $1`,
		productID, cost,
	)
	if err != nil {
		return fmt.Errorf("update product cost: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("update product cost: producto %s no existe", productID)
	}
	return nil
}

func (r *ProductRepo) bundleItems(ctx context.Context, bundleIDs []string) (map[string][]entity.BundleItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT bundle_id, member_product_id, quantity_per_bundle, position
		FROM bundle_items WHERE bundle_id = ANY($1)
		ORDER BY bundle_id, position`, bundleIDs)
	if err != nil {
		return nil, fmt.Errorf("list bundle items: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]entity.BundleItem, len(bundleIDs))
	for rows.Next() {
		var it entity.BundleItem
		if err := rows.Scan(&it.BundleID, &it.MemberProductID, &it.QuantityPerBundle, &it.Position); err != nil {
			return nil, fmt.Errorf("scan bundle item: %w", err)
		}
		out[it.BundleID] = append(out[it.BundleID], it)
	}
	return out, rows.Err()
}
