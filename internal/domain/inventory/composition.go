package inventory

import (
	"fmt"
	"math"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Demand cantidad base que se exige a un producto tras expandir bundles.
type Demand struct {
	ProductID string
	Quantity  int64
}

// BulkDeduction descuento secundario sobre el producto a granel de una línea al detal.
// Quantity = floor(cantidad vendida / ConversionRatio), siempre >= 1.
type BulkDeduction struct {
	ChildID  string
	ParentID string
	Quantity int64
}

// Resolution resultado de normalizar líneas vendibles a productos base.
type Resolution struct {
	Demands        []Demand // orden de primera aparición
	BulkDeductions []BulkDeduction
}

// ReferencedProductIDs devuelve los miembros de bundle y padres a granel que aún no están en el catálogo.
// El llamador debe cargarlos antes de Resolve.
func ReferencedProductIDs(catalog map[string]*entity.Product) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		if _, ok := catalog[id]; ok {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, p := range catalog {
		for _, item := range p.BundleItems {
			add(item.MemberProductID)
		}
		add(p.ParentID)
	}
	return ids
}

// Resolve consolida las líneas en la demanda por producto base y planifica los descuentos a granel.
// Los bundles se resuelven a un solo nivel; un bundle dentro de otro es ErrInvalidComposition.
// Solo las líneas vendidas directamente descuentan a granel: un producto al detal dentro de un
// bundle no toca el stock de su padre. Una demanda que no cabe en int64 es ErrInvalidInput.
func Resolve(lines []entity.StockLine, catalog map[string]*entity.Product) (*Resolution, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("sin líneas: %w", domain.ErrInvalidInput)
	}
	res := &Resolution{}
	index := make(map[string]int)
	demand := func(productID string, qty int64) error {
		i, ok := index[productID]
		if !ok {
			index[productID] = len(res.Demands)
			res.Demands = append(res.Demands, Demand{ProductID: productID, Quantity: qty})
			return nil
		}
		if res.Demands[i].Quantity > math.MaxInt64-qty {
			return fmt.Errorf("demanda de %s fuera de rango: %w", productID, domain.ErrInvalidInput)
		}
		res.Demands[i].Quantity += qty
		return nil
	}

	for _, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return nil, fmt.Errorf("línea %q cantidad %d: %w", line.ProductID, line.Quantity, domain.ErrInvalidInput)
		}
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("producto %s: %w", line.ProductID, domain.ErrNotFound)
		}

		if product.IsBundle() {
			if len(product.BundleItems) == 0 {
				return nil, &domain.CompositionError{ProductID: product.ID, Reason: "bundle sin miembros"}
			}
			for _, item := range product.BundleItems {
				member, ok := catalog[item.MemberProductID]
				if !ok {
					return nil, fmt.Errorf("miembro %s del bundle %s: %w", item.MemberProductID, product.ID, domain.ErrNotFound)
				}
				if member.IsBundle() {
					return nil, &domain.CompositionError{ProductID: product.ID, Reason: "bundle anidado " + member.ID}
				}
				if item.QuantityPerBundle <= 0 {
					return nil, &domain.CompositionError{ProductID: product.ID, Reason: "cantidad por bundle no positiva"}
				}
				if item.QuantityPerBundle > math.MaxInt64/line.Quantity {
					return nil, fmt.Errorf("bundle %s x%d fuera de rango: %w", product.ID, line.Quantity, domain.ErrInvalidInput)
				}
				if err := demand(member.ID, item.QuantityPerBundle*line.Quantity); err != nil {
					return nil, err
				}
			}
		} else if err := demand(product.ID, line.Quantity); err != nil {
			return nil, err
		}

		if !product.HasBulkParent() {
			continue
		}
		if err := validateBulkParent(product, catalog); err != nil {
			return nil, err
		}
		// Solo unidades enteras del padre; el residuo no se descuenta.
		if extra := line.Quantity / product.ConversionRatio; extra >= 1 {
			res.BulkDeductions = append(res.BulkDeductions, BulkDeduction{
				ChildID:  product.ID,
				ParentID: product.ParentID,
				Quantity: extra,
			})
		}
	}
	return res, nil
}

func validateBulkParent(product *entity.Product, catalog map[string]*entity.Product) error {
	if product.ParentID == product.ID {
		return &domain.CompositionError{ProductID: product.ID, Reason: "el producto es su propio padre"}
	}
	if product.ConversionRatio < 1 {
		return &domain.CompositionError{ProductID: product.ID, Reason: "ratio de conversión menor a 1"}
	}
	parent, ok := catalog[product.ParentID]
	if !ok {
		return fmt.Errorf("padre %s de %s: %w", product.ParentID, product.ID, domain.ErrNotFound)
	}
	if parent.IsBundle() {
		return &domain.CompositionError{ProductID: product.ID, Reason: "el padre a granel es un bundle"}
	}
	return nil
}

// Keys devuelve todas las filas que la resolución puede tocar en la bodega, incluidos los padres.
func (r *Resolution) Keys(warehouseID string) []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(r.Demands)+len(r.BulkDeductions))
	for _, d := range r.Demands {
		keys = append(keys, entity.StockKey{ProductID: d.ProductID, WarehouseID: warehouseID})
	}
	for _, b := range r.BulkDeductions {
		keys = append(keys, entity.StockKey{ProductID: b.ParentID, WarehouseID: warehouseID})
	}
	return keys
}
