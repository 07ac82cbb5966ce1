// Package memory implementa los puertos del libro de stock en memoria para pruebas y demos.
// Las transacciones se serializan con un único mutex y se revierten restaurando una copia del estado.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

type state struct {
	stock      map[entity.StockKey]entity.Stock
	movements  []entity.StockMovement
	products   map[string]entity.Product
	warehouses map[string]entity.Warehouse
	sessions   map[string]entity.OpnameSession
	orders     map[string]entity.Order
	sales      map[string]entity.Sale
	returns    []entity.SaleReturn
}

// Store estado completo del libro en memoria.
type Store struct {
	mu        sync.Mutex
	st        state
	conflicts int
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: state{
		stock:      map[entity.StockKey]entity.Stock{},
		products:   map[string]entity.Product{},
		warehouses: map[string]entity.Warehouse{},
		sessions:   map[string]entity.OpnameSession{},
		orders:     map[string]entity.Order{},
		sales:      map[string]entity.Sale{},
	}}
}

// Run ejecuta fn con acceso exclusivo; si fn falla el estado vuelve a la copia previa.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("memory: bloqueo no disponible: %w", domain.ErrConcurrencyConflict)
	}
	snapshot := s.st.clone()
	if err := fn(s.repos(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Repos devuelve repositorios fuera de transacción; cada llamada toma el mutex.
func (s *Store) Repos() inventory.TxRepos {
	return s.repos(false)
}

func (s *Store) repos(inTx bool) inventory.TxRepos {
	return inventory.TxRepos{
		Stock:      &stockRepo{s: s, inTx: inTx},
		Movements:  &movementRepo{s: s, inTx: inTx},
		Products:   &productRepo{s: s, inTx: inTx},
		Warehouses: &warehouseRepo{s: s, inTx: inTx},
		Opname:     &opnameRepo{s: s, inTx: inTx},
		Orders:     &orderRepo{s: s, inTx: inTx},
		Sales:      &saleRepo{s: s, inTx: inTx},
	}
}

// lock no vuelve a tomar el mutex si el llamador ya está dentro de Run.
func (s *Store) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InjectConflicts hace que las próximas n llamadas a Run fallen con ErrConcurrencyConflict.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	s.conflicts = n
	s.mu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// Carga de datos y lectura directa (pruebas)
// ──────────────────────────────────────────────────────────────────────────────

// AddWarehouse registra una bodega.
func (s *Store) AddWarehouse(w entity.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.warehouses[w.ID] = w
}

// AddProduct registra un producto (con sus líneas de bundle si aplica).
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = cloneProduct(p)
}

// SetStock fija la cantidad sin escribir movimiento.
func (s *Store) SetStock(productID, warehouseID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entity.StockKey{ProductID: productID, WarehouseID: warehouseID}
	s.st.stock[key] = entity.Stock{ProductID: productID, WarehouseID: warehouseID, Quantity: qty, UpdatedAt: time.Now().UTC()}
}

// Quantity cantidad actual; 0 si no existe la fila.
func (s *Store) Quantity(productID, warehouseID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.stock[entity.StockKey{ProductID: productID, WarehouseID: warehouseID}].Quantity
}

// Movements copia de todos los movimientos en orden de inserción.
func (s *Store) Movements() []entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.movements)
}

// Product copia del producto registrado.
func (s *Store) Product(id string) (entity.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return cloneProduct(p), ok
}

// ──────────────────────────────────────────────────────────────────────────────
// Copias profundas
// ──────────────────────────────────────────────────────────────────────────────

func (st state) clone() state {
	out := state{
		stock:      make(map[entity.StockKey]entity.Stock, len(st.stock)),
		movements:  slices.Clone(st.movements),
		products:   make(map[string]entity.Product, len(st.products)),
		warehouses: make(map[string]entity.Warehouse, len(st.warehouses)),
		sessions:   make(map[string]entity.OpnameSession, len(st.sessions)),
		orders:     make(map[string]entity.Order, len(st.orders)),
		sales:      make(map[string]entity.Sale, len(st.sales)),
		returns:    make([]entity.SaleReturn, 0, len(st.returns)),
	}
	for k, v := range st.stock {
		out.stock[k] = v
	}
	for k, v := range st.products {
		out.products[k] = cloneProduct(v)
	}
	for k, v := range st.warehouses {
		out.warehouses[k] = v
	}
	for k, v := range st.sessions {
		out.sessions[k] = cloneSession(v)
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for k, v := range st.sales {
		out.sales[k] = cloneSale(v)
	}
	for _, r := range st.returns {
		r.Items = slices.Clone(r.Items)
		out.returns = append(out.returns, r)
	}
	return out
}

func cloneProduct(p entity.Product) entity.Product {
	p.BundleItems = slices.Clone(p.BundleItems)
	return p
}

func cloneOrder(o entity.Order) entity.Order {
	o.Items = slices.Clone(o.Items)
	o.CompletedAt = cloneTime(o.CompletedAt)
	o.CancelledAt = cloneTime(o.CancelledAt)
	return o
}

func cloneSale(sa entity.Sale) entity.Sale {
	sa.Items = slices.Clone(sa.Items)
	sa.VoidedAt = cloneTime(sa.VoidedAt)
	return sa
}

func cloneSession(ses entity.OpnameSession) entity.OpnameSession {
	ses.FinalizedAt = cloneTime(ses.FinalizedAt)
	ses.DeletedAt = cloneTime(ses.DeletedAt)
	lines := make([]entity.OpnameLine, len(ses.Lines))
	for i, l := range ses.Lines {
		lines[i] = cloneLine(l)
	}
	ses.Lines = lines
	return ses
}

func cloneLine(l entity.OpnameLine) entity.OpnameLine {
	l.PhysicalQty = cloneInt(l.PhysicalQty)
	l.Difference = cloneInt(l.Difference)
	l.CountedAt = cloneTime(l.CountedAt)
	return l
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
