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

// SaleUseCase ventas POS: descuentan al crearse, se anulan restaurando y admiten devoluciones parciales.
type SaleUseCase struct {
	engine *inventory.Engine
}

// NewSaleUseCase construye el caso de uso de ventas.
func NewSaleUseCase(engine *inventory.Engine) *SaleUseCase {
	return &SaleUseCase{engine: engine}
}

// Create registra la venta y descuenta el stock en la misma transacción.
func (uc *SaleUseCase) Create(ctx context.Context, warehouseID string, items []entity.StockLine) (*entity.Sale, error) {
	now := time.Now().UTC()
	sale := &entity.Sale{
		ID:          uuid.New().String(),
		Number:      domaininv.NewReferenceNumber(domaininv.RefPrefixSale, now),
		WarehouseID: uc.engine.Config().Resolve(warehouseID),
		Status:      entity.SaleStatusCompleted,
		Items:       items,
		CreatedBy:   inventory.UserIDFromContext(ctx),
		CreatedAt:   now,
	}
	_, err := uc.engine.Execute(ctx, "sale_create", func(repos inventory.TxRepos) (*inventory.Result, error) {
		res, err := uc.engine.ReserveInTx(ctx, repos, items, sale.WarehouseID, saleRef(sale))
		if err != nil {
			return nil, err
		}
		if err := repos.Sales.Create(ctx, sale); err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Void anula la venta y devuelve al stock lo que aún no se había devuelto.
func (uc *SaleUseCase) Void(ctx context.Context, saleID, reason string) (*entity.Sale, error) {
	var sale *entity.Sale
	_, err := uc.engine.Execute(ctx, "sale_void", func(repos inventory.TxRepos) (*inventory.Result, error) {
		s, err := lockCompleted(ctx, repos, saleID)
		if err != nil {
			return nil, err
		}
		returned, err := repos.Sales.ReturnedQuantities(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		pending := pendingLines(s.Items, returned)
		res := &inventory.Result{Reference: saleRef(s)}
		if len(pending) > 0 {
			if res, err = uc.engine.RestoreInTx(ctx, repos, pending, s.WarehouseID, saleRef(s)); err != nil {
				return nil, err
			}
		}
		now := time.Now().UTC()
		s.Status = entity.SaleStatusVoided
		s.VoidReason = reason
		s.VoidedAt = &now
		if err := repos.Sales.Update(ctx, s); err != nil {
			return nil, err
		}
		sale = s
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Return devuelve líneas de una venta; no se puede devolver más de lo vendido menos lo ya devuelto.
func (uc *SaleUseCase) Return(ctx context.Context, saleID string, items []entity.StockLine, reason string) (*entity.SaleReturn, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("devolución sin líneas: %w", domain.ErrInvalidInput)
	}
	var ret *entity.SaleReturn
	_, err := uc.engine.Execute(ctx, "sale_return", func(repos inventory.TxRepos) (*inventory.Result, error) {
		s, err := lockCompleted(ctx, repos, saleID)
		if err != nil {
			return nil, err
		}
		returned, err := repos.Sales.ReturnedQuantities(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		sold := soldQuantities(s.Items)
		for productID, qty := range soldQuantities(items) {
			if qty > sold[productID]-returned[productID] {
				return nil, fmt.Errorf("devolución de %d %s excede lo vendido (%d, devuelto %d): %w",
					qty, productID, sold[productID], returned[productID], domain.ErrInvalidInput)
			}
		}

		now := time.Now().UTC()
		r := &entity.SaleReturn{
			ID:        uuid.New().String(),
			SaleID:    s.ID,
			Number:    domaininv.NewReferenceNumber(domaininv.RefPrefixReturn, now),
			Items:     items,
			Reason:    reason,
			CreatedBy: inventory.UserIDFromContext(ctx),
			CreatedAt: now,
		}
		ref := entity.Reference{Type: entity.ReferenceTypeReturn, ID: r.ID, Number: r.Number}
		res, err := uc.engine.RestoreInTx(ctx, repos, items, s.WarehouseID, ref)
		if err != nil {
			return nil, err
		}
		if err := repos.Sales.CreateReturn(ctx, r); err != nil {
			return nil, err
		}
		ret = r
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func lockCompleted(ctx context.Context, repos inventory.TxRepos, saleID string) (*entity.Sale, error) {
	s, err := repos.Sales.GetForUpdate(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("venta %s: %w", saleID, domain.ErrNotFound)
	}
	if s.Status != entity.SaleStatusCompleted {
		return nil, fmt.Errorf("venta %s en estado %s: %w", s.Number, s.Status, domain.ErrInvalidState)
	}
	return s, nil
}

// soldQuantities suma las líneas por producto tal como se vendieron (sin expandir bundles).
func soldQuantities(items []entity.StockLine) map[string]int64 {
	out := make(map[string]int64, len(items))
	for _, it := range items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

// pendingLines lo vendido menos lo devuelto por producto, en el orden de las líneas de la venta.
func pendingLines(items []entity.StockLine, returned map[string]int64) []entity.StockLine {
	sold := soldQuantities(items)
	var pending []entity.StockLine
	for _, it := range items {
		qty, ok := sold[it.ProductID]
		if !ok {
			continue
		}
		delete(sold, it.ProductID)
		if left := qty - returned[it.ProductID]; left > 0 {
			pending = append(pending, entity.StockLine{ProductID: it.ProductID, Quantity: left})
		}
	}
	return pending
}

func saleRef(s *entity.Sale) entity.Reference {
	return entity.Reference{Type: entity.ReferenceTypeSale, ID: s.ID, Number: s.Number}
}
