package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de producto.
const (
	ProductKindStandard = "standard"
	ProductKindBundle   = "bundle"
)

// Product representa un producto o SKU vendible (multi-bodega).
// Un bundle no tiene stock propio: se compone de BundleItems.
// Un producto al detal puede declarar ParentID (producto a granel) y ConversionRatio
// (unidades al detal por unidad a granel, ej. 100 = 100 unidades son 1 unidad a granel).
type Product struct {
	ID              string
	SKU             string
	Name            string
	Kind            string
	ParentID        string // vacío si no tiene padre a granel
	ConversionRatio int64
	Cost            decimal.Decimal // costo promedio ponderado
	Active          bool
	BundleItems     []BundleItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BundleItem línea ordenada de un bundle: cuántas unidades del miembro consume una unidad del bundle.
type BundleItem struct {
	BundleID          string
	MemberProductID   string
	QuantityPerBundle int64
	Position          int
}

// IsBundle indica si el producto es un bundle.
func (p *Product) IsBundle() bool {
	return p.Kind == ProductKindBundle
}

// HasBulkParent indica si el producto al detal descuenta también de un producto a granel.
func (p *Product) HasBulkParent() bool {
	return p.ParentID != ""
}
