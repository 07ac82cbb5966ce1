package opname_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/opname"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

const whMain = "wh-main"

func setup(t *testing.T) (*memory.Store, *opname.UseCase) {
	t.Helper()
	s := memory.NewStore()
	s.AddWarehouse(entity.Warehouse{ID: whMain, IsDefault: true, Type: entity.WarehouseTypeNormal})
	s.AddProduct(entity.Product{ID: "A", Kind: entity.ProductKindStandard, Active: true})
	s.AddProduct(entity.Product{ID: "B", Kind: entity.ProductKindStandard, Active: true})
	s.AddProduct(entity.Product{ID: "C", Kind: entity.ProductKindStandard, Active: false})
	s.AddProduct(entity.Product{ID: "COMBO", Kind: entity.ProductKindBundle, Active: true, BundleItems: []entity.BundleItem{
		{BundleID: "COMBO", MemberProductID: "A", QuantityPerBundle: 1},
	}})
	s.SetStock("A", whMain, 10)
	s.SetStock("B", whMain, 4)

	engine, err := inventory.NewEngine(s, inventory.WarehouseConfig{DefaultWarehouseID: whMain}, nil, zerolog.Nop(), 3)
	require.NoError(t, err)
	return s, opname.NewUseCase(engine, s.Repos().Opname, zerolog.Nop())
}

func lineFor(t *testing.T, s *entity.OpnameSession, productID string) entity.OpnameLine {
	t.Helper()
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l
		}
	}
	t.Fatalf("sin línea para %s", productID)
	return entity.OpnameLine{}
}

// ──────────────────────────────────────────────────────────────────────────────
// Start / RecordCount
// ──────────────────────────────────────────────────────────────────────────────

func TestStart_FotoDeProductosActivos(t *testing.T) {
	_, uc := setup(t)
	s, err := uc.Start(context.Background(), "", "conteo mensual")
	require.NoError(t, err)

	assert.Equal(t, entity.OpnameStatusCounting, s.Status)
	assert.Equal(t, whMain, s.WarehouseID)
	require.Len(t, s.Lines, 2, "solo estándar activos; bundles e inactivos quedan fuera")
	assert.Equal(t, int64(10), lineFor(t, s, "A").SystemQty)
	assert.Equal(t, int64(4), lineFor(t, s, "B").SystemQty)
	for _, l := range s.Lines {
		assert.Nil(t, l.PhysicalQty)
	}
}

func TestStart_BodegaInexistente(t *testing.T) {
	_, uc := setup(t)
	_, err := uc.Start(context.Background(), "no-existe", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordCount_CalculaDiferencia(t *testing.T) {
	_, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)

	line, err := uc.RecordCount(ctx, s.ID, lineFor(t, s, "A").ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *line.PhysicalQty)
	assert.Equal(t, int64(-3), *line.Difference)

	_, err = uc.RecordCount(ctx, s.ID, "no-existe", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.RecordCount(ctx, s.ID, line.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Finalize
// ──────────────────────────────────────────────────────────────────────────────

func TestFinalize_ConteoIncompleto(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)
	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "A").ID, 12)
	require.NoError(t, err)

	_, err = uc.Finalize(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrIncompleteCount)
	var incomplete *domain.IncompleteCountError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 1, incomplete.Missing)
	assert.Equal(t, int64(10), store.Quantity("A", whMain))
}

func TestFinalize_AplicaDiferenciasUnaSolaVez(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)
	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "A").ID, 12)
	require.NoError(t, err)
	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "B").ID, 1)
	require.NoError(t, err)

	done, err := uc.Finalize(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OpnameStatusFinalized, done.Status)
	assert.NotNil(t, done.FinalizedAt)
	assert.Equal(t, int64(12), store.Quantity("A", whMain))
	assert.Equal(t, int64(1), store.Quantity("B", whMain))

	movs := store.Movements()
	require.Len(t, movs, 2)
	for _, m := range movs {
		assert.Equal(t, entity.ReferenceTypeOpname, m.ReferenceType)
		assert.Equal(t, s.Number, m.ReferenceNumber)
	}

	// Segunda finalización: error y stock intacto.
	_, err = uc.Finalize(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Equal(t, int64(12), store.Quantity("A", whMain))
	assert.Len(t, store.Movements(), 2)

	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "A").ID, 1)
	assert.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.ErrorIs(t, uc.Delete(ctx, s.ID), domain.ErrAlreadyFinalized)
}

func TestFinalize_FalloDelAjusteDejaLaSesionAbierta(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)
	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "A").ID, 12)
	require.NoError(t, err)
	_, err = uc.RecordCount(ctx, s.ID, lineFor(t, s, "B").ID, 1)
	require.NoError(t, err)

	// B pasa a ser bundle durante el conteo: su ajuste falla dentro de la finalización.
	store.AddProduct(entity.Product{ID: "B", Kind: entity.ProductKindBundle, Active: true, BundleItems: []entity.BundleItem{
		{BundleID: "B", MemberProductID: "A", QuantityPerBundle: 1},
	}})

	_, err = uc.Finalize(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidComposition)

	got, err := uc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OpnameStatusCounting, got.Status)
	assert.Nil(t, got.FinalizedAt)
	assert.Equal(t, int64(10), store.Quantity("A", whMain))
	assert.Equal(t, int64(4), store.Quantity("B", whMain))
	assert.Empty(t, store.Movements())
}

func TestFinalize_SinDiferenciasNoMueveStock(t *testing.T) {
	store, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)
	for _, l := range s.Lines {
		_, err := uc.RecordCount(ctx, s.ID, l.ID, l.SystemQty)
		require.NoError(t, err)
	}
	_, err = uc.Finalize(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, store.Movements())
}

// ──────────────────────────────────────────────────────────────────────────────
// Delete / Get / List
// ──────────────────────────────────────────────────────────────────────────────

func TestDelete_BorradoLogico(t *testing.T) {
	_, uc := setup(t)
	ctx := context.Background()
	s, err := uc.Start(ctx, "", "")
	require.NoError(t, err)
	other, err := uc.Start(ctx, "", "")
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, s.ID))

	_, err = uc.Get(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.RecordCount(ctx, s.ID, s.Lines[0].ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, s.ID), domain.ErrNotFound)

	list, err := uc.List(ctx, whMain, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
}
