package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Result movimientos escritos por una operación confirmada.
type Result struct {
	Reference entity.Reference
	Movements []*entity.StockMovement
}

// unitOfWork agrupa las filas bloqueadas de una operación: se muta en memoria y se persiste de una vez.
// Cada apply produce exactamente un movimiento con after = before + change.
type unitOfWork struct {
	repos   TxRepos
	ref     entity.Reference
	actor   string
	now     time.Time
	levels  map[entity.StockKey]*entity.Stock
	dirty   map[entity.StockKey]bool
	entries []*entity.StockMovement
}

// sortedKeys elimina duplicados y ordena por (producto, bodega): orden fijo de bloqueo.
func sortedKeys(keys []entity.StockKey) []entity.StockKey {
	seen := make(map[entity.StockKey]bool, len(keys))
	out := make([]entity.StockKey, 0, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// begin bloquea todas las filas que la operación puede tocar antes de decidir nada.
func (e *Engine) begin(ctx context.Context, repos TxRepos, ref entity.Reference, keys []entity.StockKey) (*unitOfWork, error) {
	levels, err := repos.Stock.LockForUpdate(ctx, sortedKeys(keys))
	if err != nil {
		return nil, err
	}
	return &unitOfWork{
		repos:  repos,
		ref:    ref,
		actor:  UserIDFromContext(ctx),
		now:    e.now(),
		levels: levels,
		dirty:  make(map[entity.StockKey]bool),
	}, nil
}

func (u *unitOfWork) quantity(key entity.StockKey) int64 {
	if l, ok := u.levels[key]; ok {
		return l.Quantity
	}
	return 0
}

// apply aplica delta a una fila bloqueada; falla con InsufficientStockError si quedaría negativa.
func (u *unitOfWork) apply(key entity.StockKey, delta int64, movementType string, unitCost decimal.Decimal, notes string) error {
	level, ok := u.levels[key]
	if !ok {
		return fmt.Errorf("fila %s/%s sin bloqueo: %w", key.ProductID, key.WarehouseID, domain.ErrConflict)
	}
	before := level.Quantity
	if delta > 0 && before > math.MaxInt64-delta {
		return fmt.Errorf("cantidad de %s/%s fuera de rango: %w", key.ProductID, key.WarehouseID, domain.ErrInvalidInput)
	}
	after := before + delta
	if after < 0 {
		return &domain.InsufficientStockError{
			ProductID:   key.ProductID,
			WarehouseID: key.WarehouseID,
			Available:   before,
			Required:    -delta,
		}
	}
	u.dirty[key] = true
	level.Quantity = after
	level.UpdatedAt = u.now

	u.entries = append(u.entries, &entity.StockMovement{
		ID:              uuid.New().String(),
		ProductID:       key.ProductID,
		WarehouseID:     key.WarehouseID,
		MovementType:    movementType,
		ReferenceType:   u.ref.Type,
		ReferenceID:     u.ref.ID,
		ReferenceNumber: u.ref.Number,
		QuantityBefore:  before,
		QuantityChange:  delta,
		QuantityAfter:   after,
		UnitCost:        unitCost,
		Notes:           notes,
		CreatedBy:       u.actor,
		CreatedAt:       u.now,
	})
	return nil
}

// flush guarda las filas modificadas y el lote de movimientos dentro de la misma transacción.
func (u *unitOfWork) flush(ctx context.Context) (*Result, error) {
	if len(u.entries) == 0 {
		return &Result{Reference: u.ref}, nil
	}
	keys := make([]entity.StockKey, 0, len(u.dirty))
	for k := range u.dirty {
		keys = append(keys, k)
	}
	levels := make([]*entity.Stock, 0, len(keys))
	for _, k := range sortedKeys(keys) {
		levels = append(levels, u.levels[k])
	}
	if err := u.repos.Stock.Save(ctx, levels); err != nil {
		return nil, err
	}
	if err := u.repos.Movements.CreateBatch(ctx, u.entries); err != nil {
		return nil, err
	}
	return &Result{Reference: u.ref, Movements: u.entries}, nil
}
