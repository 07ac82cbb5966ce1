package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.StockRepository         = (*stockRepo)(nil)
	_ repository.StockMovementRepository = (*movementRepo)(nil)
	_ repository.ProductRepository       = (*productRepo)(nil)
	_ repository.WarehouseRepository     = (*warehouseRepo)(nil)
	_ repository.OpnameRepository        = (*opnameRepo)(nil)
	_ repository.OrderRepository         = (*orderRepo)(nil)
	_ repository.SaleRepository          = (*saleRepo)(nil)
)

// ──────────────────────────────────────────────────────────────────────────────
// Stock
// ──────────────────────────────────────────────────────────────────────────────

type stockRepo struct {
	s    *Store
	inTx bool
}

func (r *stockRepo) Get(_ context.Context, productID, warehouseID string) (*entity.Stock, error) {
	defer r.s.lock(r.inTx)()
	key := entity.StockKey{ProductID: productID, WarehouseID: warehouseID}
	if st, ok := r.s.st.stock[key]; ok {
		return &st, nil
	}
	return &entity.Stock{ProductID: productID, WarehouseID: warehouseID}, nil
}

func (r *stockRepo) ListByWarehouse(_ context.Context, warehouseID string) ([]*entity.Stock, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.Stock
	for _, st := range r.s.st.stock {
		if st.WarehouseID == warehouseID {
			st := st
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// LockForUpdate crea filas en cero; el bloqueo real es el mutex de Run.
func (r *stockRepo) LockForUpdate(_ context.Context, keys []entity.StockKey) (map[entity.StockKey]*entity.Stock, error) {
	defer r.s.lock(r.inTx)()
	out := make(map[entity.StockKey]*entity.Stock, len(keys))
	for _, k := range keys {
		st, ok := r.s.st.stock[k]
		if !ok {
			st = entity.Stock{ProductID: k.ProductID, WarehouseID: k.WarehouseID, UpdatedAt: time.Now().UTC()}
			r.s.st.stock[k] = st
		}
		out[k] = &st
	}
	return out, nil
}

func (r *stockRepo) Save(_ context.Context, levels []*entity.Stock) error {
	defer r.s.lock(r.inTx)()
	for _, l := range levels {
		if l.Quantity < 0 {
			return fmt.Errorf("memory: cantidad negativa para %s/%s", l.ProductID, l.WarehouseID)
		}
		r.s.st.stock[l.Key()] = *l
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Movimientos
// ──────────────────────────────────────────────────────────────────────────────

type movementRepo struct {
	s    *Store
	inTx bool
}

func (r *movementRepo) CreateBatch(_ context.Context, movements []*entity.StockMovement) error {
	defer r.s.lock(r.inTx)()
	for _, m := range movements {
		r.s.st.movements = append(r.s.st.movements, *m)
	}
	return nil
}

func (r *movementRepo) List(_ context.Context, f entity.MovementFilter) ([]*entity.StockMovement, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.StockMovement
	for i := len(r.s.st.movements) - 1; i >= 0; i-- {
		m := r.s.st.movements[i]
		switch {
		case f.ProductID != "" && m.ProductID != f.ProductID,
			f.WarehouseID != "" && m.WarehouseID != f.WarehouseID,
			f.ReferenceType != "" && m.ReferenceType != f.ReferenceType,
			f.ReferenceNumber != "" && m.ReferenceNumber != f.ReferenceNumber,
			f.From != nil && m.CreatedAt.Before(*f.From),
			f.To != nil && m.CreatedAt.After(*f.To):
			continue
		}
		out = append(out, &m)
	}
	return paginate(out, f.Limit, f.Offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ──────────────────────────────────────────────────────────────────────────────
// Productos y bodegas
// ──────────────────────────────────────────────────────────────────────────────

type productRepo struct {
	s    *Store
	inTx bool
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	defer r.s.lock(r.inTx)()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, nil
	}
	p = cloneProduct(p)
	return &p, nil
}

func (r *productRepo) GetByIDs(_ context.Context, ids []string) (map[string]*entity.Product, error) {
	defer r.s.lock(r.inTx)()
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.st.products[id]; ok {
			p = cloneProduct(p)
			out[id] = &p
		}
	}
	return out, nil
}

func (r *productRepo) ListActiveStandard(_ context.Context) ([]*entity.Product, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.Product
	for _, p := range r.s.st.products {
		if p.Active && !p.IsBundle() {
			p = cloneProduct(p)
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *productRepo) UpdateCost(_ context.Context, productID string, cost decimal.Decimal) error {
	defer r.s.lock(r.inTx)()
	p, ok := r.s.st.products[productID]
	if !ok {
		return fmt.Errorf("memory: producto %s no existe", productID)
	}
	p.Cost = cost
	r.s.st.products[productID] = p
	return nil
}

type warehouseRepo struct {
	s    *Store
	inTx bool
}

func (r *warehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	defer r.s.lock(r.inTx)()
	w, ok := r.s.st.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *warehouseRepo) List(_ context.Context) ([]*entity.Warehouse, error) {
	defer r.s.lock(r.inTx)()
	out := make([]*entity.Warehouse, 0, len(r.s.st.warehouses))
	for _, w := range r.s.st.warehouses {
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Opname
// ──────────────────────────────────────────────────────────────────────────────

type opnameRepo struct {
	s    *Store
	inTx bool
}

func (r *opnameRepo) Create(_ context.Context, session *entity.OpnameSession) error {
	defer r.s.lock(r.inTx)()
	r.s.st.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (r *opnameRepo) GetForUpdate(ctx context.Context, id string) (*entity.OpnameSession, error) {
	return r.GetByID(ctx, id)
}

func (r *opnameRepo) GetByID(_ context.Context, id string) (*entity.OpnameSession, error) {
	defer r.s.lock(r.inTx)()
	ses, ok := r.s.st.sessions[id]
	if !ok {
		return nil, nil
	}
	ses = cloneSession(ses)
	return &ses, nil
}

func (r *opnameRepo) ListByWarehouse(_ context.Context, warehouseID string, limit, offset int) ([]*entity.OpnameSession, error) {
	defer r.s.lock(r.inTx)()
	var out []*entity.OpnameSession
	for _, ses := range r.s.st.sessions {
		if ses.IsDeleted() || (warehouseID != "" && ses.WarehouseID != warehouseID) {
			continue
		}
		ses = cloneSession(ses)
		out = append(out, &ses)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *opnameRepo) UpdateLine(_ context.Context, line *entity.OpnameLine) error {
	defer r.s.lock(r.inTx)()
	ses, ok := r.s.st.sessions[line.SessionID]
	if !ok {
		return fmt.Errorf("memory: sesión %s no existe", line.SessionID)
	}
	i := slices.IndexFunc(ses.Lines, func(l entity.OpnameLine) bool { return l.ID == line.ID })
	if i < 0 {
		return fmt.Errorf("memory: línea %s no existe", line.ID)
	}
	ses.Lines[i] = cloneLine(*line)
	return nil
}

func (r *opnameRepo) Update(_ context.Context, session *entity.OpnameSession) error {
	defer r.s.lock(r.inTx)()
	ses, ok := r.s.st.sessions[session.ID]
	if !ok {
		return fmt.Errorf("memory: sesión %s no existe", session.ID)
	}
	ses.Status = session.Status
	ses.Notes = session.Notes
	ses.FinalizedAt = cloneTime(session.FinalizedAt)
	ses.DeletedAt = cloneTime(session.DeletedAt)
	r.s.st.sessions[session.ID] = ses
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Pedidos y ventas
// ──────────────────────────────────────────────────────────────────────────────

type orderRepo struct {
	s    *Store
	inTx bool
}

func (r *orderRepo) Create(_ context.Context, order *entity.Order) error {
	defer r.s.lock(r.inTx)()
	r.s.st.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (r *orderRepo) GetForUpdate(_ context.Context, id string) (*entity.Order, error) {
	defer r.s.lock(r.inTx)()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *orderRepo) Update(_ context.Context, order *entity.Order) error {
	defer r.s.lock(r.inTx)()
	o, ok := r.s.st.orders[order.ID]
	if !ok {
		return fmt.Errorf("memory: pedido %s no existe", order.ID)
	}
	items := o.Items
	o = cloneOrder(*order)
	o.Items = items
	r.s.st.orders[order.ID] = o
	return nil
}

func (r *orderRepo) ReplaceItems(_ context.Context, orderID string, items []entity.StockLine) error {
	defer r.s.lock(r.inTx)()
	o, ok := r.s.st.orders[orderID]
	if !ok {
		return fmt.Errorf("memory: pedido %s no existe", orderID)
	}
	o.Items = slices.Clone(items)
	r.s.st.orders[orderID] = o
	return nil
}

type saleRepo struct {
	s    *Store
	inTx bool
}

func (r *saleRepo) Create(_ context.Context, sale *entity.Sale) error {
	defer r.s.lock(r.inTx)()
	r.s.st.sales[sale.ID] = cloneSale(*sale)
	return nil
}

func (r *saleRepo) GetForUpdate(_ context.Context, id string) (*entity.Sale, error) {
	defer r.s.lock(r.inTx)()
	sa, ok := r.s.st.sales[id]
	if !ok {
		return nil, nil
	}
	sa = cloneSale(sa)
	return &sa, nil
}

func (r *saleRepo) Update(_ context.Context, sale *entity.Sale) error {
	defer r.s.lock(r.inTx)()
	if _, ok := r.s.st.sales[sale.ID]; !ok {
		return fmt.Errorf("memory: venta %s no existe", sale.ID)
	}
	r.s.st.sales[sale.ID] = cloneSale(*sale)
	return nil
}

func (r *saleRepo) CreateReturn(_ context.Context, ret *entity.SaleReturn) error {
	defer r.s.lock(r.inTx)()
	cp := *ret
	cp.Items = slices.Clone(ret.Items)
	r.s.st.returns = append(r.s.st.returns, cp)
	return nil
}

func (r *saleRepo) ReturnedQuantities(_ context.Context, saleID string) (map[string]int64, error) {
	defer r.s.lock(r.inTx)()
	out := make(map[string]int64)
	for _, ret := range r.s.st.returns {
		if ret.SaleID != saleID {
			continue
		}
		for _, it := range ret.Items {
			out[it.ProductID] += it.Quantity
		}
	}
	return out, nil
}
