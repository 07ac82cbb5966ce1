package inventory_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo de prueba
// ──────────────────────────────────────────────────────────────────────────────

func standard(id string) *entity.Product {
	return &entity.Product{ID: id, Kind: entity.ProductKindStandard, Active: true}
}

func bundle(id string, items ...entity.BundleItem) *entity.Product {
	return &entity.Product{ID: id, Kind: entity.ProductKindBundle, Active: true, BundleItems: items}
}

func member(productID string, qty int64) entity.BundleItem {
	return entity.BundleItem{MemberProductID: productID, QuantityPerBundle: qty}
}

func catalogOf(products ...*entity.Product) map[string]*entity.Product {
	m := make(map[string]*entity.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return m
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolve
// ──────────────────────────────────────────────────────────────────────────────

func TestResolve_ProductoEstandarAportaSuCantidad(t *testing.T) {
	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "A", Quantity: 4}}, catalogOf(standard("A")))
	require.NoError(t, err)
	assert.Equal(t, []inventory.Demand{{ProductID: "A", Quantity: 4}}, res.Demands)
	assert.Empty(t, res.BulkDeductions)
}

func TestResolve_BundleExpandeMiembros(t *testing.T) {
	catalog := catalogOf(standard("A"), bundle("COMBO", member("A", 2)))
	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "COMBO", Quantity: 3}}, catalog)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Demand{{ProductID: "A", Quantity: 6}}, res.Demands)
}

func TestResolve_ConsolidaDemandaEntreLineas(t *testing.T) {
	catalog := catalogOf(
		standard("A"), standard("B"),
		bundle("COMBO", member("A", 2), member("B", 1)),
		bundle("DUO", member("A", 1)),
	)
	lines := []entity.StockLine{
		{ProductID: "COMBO", Quantity: 2},
		{ProductID: "A", Quantity: 1},
		{ProductID: "DUO", Quantity: 5},
	}
	res, err := inventory.Resolve(lines, catalog)
	require.NoError(t, err)
	// Orden de primera aparición: A (por COMBO), B.
	assert.Equal(t, []inventory.Demand{
		{ProductID: "A", Quantity: 4 + 1 + 5},
		{ProductID: "B", Quantity: 2},
	}, res.Demands)
}

func TestResolve_BundleAnidadoEsComposicionInvalida(t *testing.T) {
	catalog := catalogOf(standard("A"), bundle("INNER", member("A", 1)), bundle("OUTER", member("INNER", 1)))
	_, err := inventory.Resolve([]entity.StockLine{{ProductID: "OUTER", Quantity: 1}}, catalog)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidComposition)

	var compErr *domain.CompositionError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "OUTER", compErr.ProductID)
}

func TestResolve_BundleSinMiembros(t *testing.T) {
	_, err := inventory.Resolve([]entity.StockLine{{ProductID: "EMPTY", Quantity: 1}}, catalogOf(bundle("EMPTY")))
	assert.ErrorIs(t, err, domain.ErrInvalidComposition)
}

func TestResolve_LineaInvalida(t *testing.T) {
	catalog := catalogOf(standard("A"))
	_, err := inventory.Resolve([]entity.StockLine{{ProductID: "A", Quantity: 0}}, catalog)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = inventory.Resolve(nil, catalog)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = inventory.Resolve([]entity.StockLine{{ProductID: "X", Quantity: 1}}, catalog)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_DemandaFueraDeRango(t *testing.T) {
	catalog := catalogOf(standard("A"), bundle("COMBO", member("A", 3)))

	_, err := inventory.Resolve([]entity.StockLine{
		{ProductID: "A", Quantity: math.MaxInt64},
		{ProductID: "A", Quantity: math.MaxInt64},
	}, catalog)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = inventory.Resolve([]entity.StockLine{{ProductID: "COMBO", Quantity: math.MaxInt64/3 + 1}}, catalog)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = inventory.Resolve([]entity.StockLine{
		{ProductID: "A", Quantity: 1},
		{ProductID: "COMBO", Quantity: math.MaxInt64 / 3},
	}, catalog)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "A", Quantity: math.MaxInt64}}, catalog)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), res.Demands[0].Quantity)
}

// ──────────────────────────────────────────────────────────────────────────────
// Descuento a granel
// ──────────────────────────────────────────────────────────────────────────────

func TestResolve_DescuentoGranelSoloUnidadesEnteras(t *testing.T) {
	retail := standard("RETAIL")
	retail.ParentID = "BULK"
	retail.ConversionRatio = 100
	catalog := catalogOf(retail, standard("BULK"))

	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "RETAIL", Quantity: 250}}, catalog)
	require.NoError(t, err)
	assert.Equal(t, []inventory.BulkDeduction{{ChildID: "RETAIL", ParentID: "BULK", Quantity: 2}}, res.BulkDeductions)

	// Menos de una unidad a granel: no se planifica descuento.
	res, err = inventory.Resolve([]entity.StockLine{{ProductID: "RETAIL", Quantity: 99}}, catalog)
	require.NoError(t, err)
	assert.Empty(t, res.BulkDeductions)
}

func TestResolve_DetalDentroDeBundleNoDescuentaGranel(t *testing.T) {
	retail := standard("RETAIL")
	retail.ParentID = "BULK"
	retail.ConversionRatio = 100
	catalog := catalogOf(retail, standard("BULK"), bundle("PACK", member("RETAIL", 100)))

	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "PACK", Quantity: 2}}, catalog)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Demand{{ProductID: "RETAIL", Quantity: 200}}, res.Demands)
	assert.Empty(t, res.BulkDeductions)
}

func TestResolve_RatioInvalido(t *testing.T) {
	retail := standard("RETAIL")
	retail.ParentID = "BULK"
	retail.ConversionRatio = 0
	_, err := inventory.Resolve([]entity.StockLine{{ProductID: "RETAIL", Quantity: 5}}, catalogOf(retail, standard("BULK")))
	assert.ErrorIs(t, err, domain.ErrInvalidComposition)
}

func TestResolution_KeysIncluyePadres(t *testing.T) {
	retail := standard("RETAIL")
	retail.ParentID = "BULK"
	retail.ConversionRatio = 10
	res, err := inventory.Resolve([]entity.StockLine{{ProductID: "RETAIL", Quantity: 20}}, catalogOf(retail, standard("BULK")))
	require.NoError(t, err)
	assert.ElementsMatch(t, []entity.StockKey{
		{ProductID: "RETAIL", WarehouseID: "W1"},
		{ProductID: "BULK", WarehouseID: "W1"},
	}, res.Keys("W1"))
}

func TestReferencedProductIDs(t *testing.T) {
	retail := standard("RETAIL")
	retail.ParentID = "BULK"
	catalog := catalogOf(retail, bundle("COMBO", member("A", 1), member("RETAIL", 1)))
	assert.ElementsMatch(t, []string{"A", "BULK"}, inventory.ReferencedProductIDs(catalog))
}
