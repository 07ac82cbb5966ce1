package inventory_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

const (
	whMain     = "wh-main"
	whSecond   = "wh-second"
	whRejected = "wh-rejected"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]*entity.StockMovement
}

func (p *fakePublisher) PublishMovements(_ context.Context, movements []*entity.StockMovement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, movements)
	return nil
}

// blockingPublisher simula un broker que no responde: espera hasta que venza el contexto.
type blockingPublisher struct {
	mu  sync.Mutex
	err error
}

func (p *blockingPublisher) PublishMovements(ctx context.Context, _ []*entity.StockMovement) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = ctx.Err()
	return p.err
}

// flakyRunner falla con conflicto las primeras n transacciones después de ejecutar fn,
// y anota el número de referencia que cada intento escribió.
type flakyRunner struct {
	store    *memory.Store
	failures int
	numbers  []string
}

type recordingMovements struct {
	repository.StockMovementRepository
	runner *flakyRunner
}

func (r recordingMovements) CreateBatch(ctx context.Context, movements []*entity.StockMovement) error {
	if len(movements) > 0 {
		r.runner.numbers = append(r.runner.numbers, movements[0].ReferenceNumber)
	}
	return r.StockMovementRepository.CreateBatch(ctx, movements)
}

func (f *flakyRunner) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) error {
	return f.store.Run(ctx, func(repos inventory.TxRepos) error {
		repos.Movements = recordingMovements{StockMovementRepository: repos.Movements, runner: f}
		if err := fn(repos); err != nil {
			return err
		}
		if f.failures > 0 {
			f.failures--
			return domain.ErrConcurrencyConflict
		}
		return nil
	})
}

func newStore() *memory.Store {
	s := memory.NewStore()
	s.AddWarehouse(entity.Warehouse{ID: whMain, Name: "Principal", Type: entity.WarehouseTypeNormal, IsDefault: true})
	s.AddWarehouse(entity.Warehouse{ID: whSecond, Name: "Sucursal", Type: entity.WarehouseTypeNormal})
	s.AddWarehouse(entity.Warehouse{ID: whRejected, Name: "Cuarentena", Type: entity.WarehouseTypeRejected})

	s.AddProduct(entity.Product{ID: "A", Kind: entity.ProductKindStandard, Active: true, Cost: decimal.NewFromInt(100)})
	s.AddProduct(entity.Product{ID: "B", Kind: entity.ProductKindStandard, Active: true})
	s.AddProduct(entity.Product{ID: "BULK", Kind: entity.ProductKindStandard, Active: true})
	s.AddProduct(entity.Product{ID: "RETAIL", Kind: entity.ProductKindStandard, Active: true, ParentID: "BULK", ConversionRatio: 100})
	s.AddProduct(entity.Product{ID: "COMBO", Kind: entity.ProductKindBundle, Active: true, BundleItems: []entity.BundleItem{
		{BundleID: "COMBO", MemberProductID: "A", QuantityPerBundle: 2},
	}})
	return s
}

func fullConfig() inventory.WarehouseConfig {
	return inventory.WarehouseConfig{DefaultWarehouseID: whMain, RejectedWarehouseID: whRejected}
}

func newEngine(t *testing.T, s *memory.Store, cfg inventory.WarehouseConfig, pub inventory.EventPublisher) *inventory.Engine {
	t.Helper()
	e, err := inventory.NewEngine(s, cfg, pub, zerolog.Nop(), 3)
	require.NoError(t, err)
	return e
}

// assertLedgerConsistent verifica after = before + change y que el último movimiento de cada fila
// coincide con la cantidad almacenada.
func assertLedgerConsistent(t *testing.T, s *memory.Store) {
	t.Helper()
	last := map[entity.StockKey]int64{}
	for _, m := range s.Movements() {
		assert.Equal(t, m.QuantityBefore+m.QuantityChange, m.QuantityAfter, "movimiento %s", m.ID)
		assert.GreaterOrEqual(t, m.QuantityAfter, int64(0))
		last[entity.StockKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID}] = m.QuantityAfter
	}
	for k, qty := range last {
		assert.Equal(t, s.Quantity(k.ProductID, k.WarehouseID), qty, "fila %s/%s", k.ProductID, k.WarehouseID)
	}
}

func lines(pairs ...any) []entity.StockLine {
	var out []entity.StockLine
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, entity.StockLine{ProductID: pairs[i].(string), Quantity: int64(pairs[i+1].(int))})
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Reserve / Restore
// ──────────────────────────────────────────────────────────────────────────────

func TestReserve_BundleConsolidaMiembros(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Reserve(context.Background(), lines("COMBO", 3), "", entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.Quantity("A", whMain))
	require.Len(t, res.Movements, 1)
	m := res.Movements[0]
	assert.Equal(t, entity.MovementTypeOut, m.MovementType)
	assert.Equal(t, entity.ReferenceTypeSale, m.ReferenceType)
	assert.Equal(t, int64(10), m.QuantityBefore)
	assert.Equal(t, int64(-6), m.QuantityChange)
	assert.Equal(t, int64(4), m.QuantityAfter)
	assertLedgerConsistent(t, s)
}

func TestReserve_DescuentoGranel(t *testing.T) {
	s := newStore()
	s.SetStock("RETAIL", whMain, 300)
	s.SetStock("BULK", whMain, 5)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Reserve(context.Background(), lines("RETAIL", 250), whMain, entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), s.Quantity("RETAIL", whMain))
	assert.Equal(t, int64(3), s.Quantity("BULK", whMain))
	assert.Len(t, res.Movements, 2)
	assertLedgerConsistent(t, s)
}

func TestReserve_DescuentoGranelOmitidoSinStockDelPadre(t *testing.T) {
	s := newStore()
	s.SetStock("RETAIL", whMain, 300)
	s.SetStock("BULK", whMain, 1)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Reserve(context.Background(), lines("RETAIL", 250), whMain, entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), s.Quantity("RETAIL", whMain))
	assert.Equal(t, int64(1), s.Quantity("BULK", whMain), "el padre no se toca si no alcanza")
	assert.Len(t, res.Movements, 1)
}

func TestReserve_DetalDentroDeBundleNoDescuentaGranel(t *testing.T) {
	s := newStore()
	s.AddProduct(entity.Product{ID: "PACK", Kind: entity.ProductKindBundle, Active: true, BundleItems: []entity.BundleItem{
		{BundleID: "PACK", MemberProductID: "RETAIL", QuantityPerBundle: 100},
	}})
	s.SetStock("RETAIL", whMain, 300)
	s.SetStock("BULK", whMain, 5)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Reserve(context.Background(), lines("PACK", 2), whMain, entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), s.Quantity("RETAIL", whMain))
	assert.Equal(t, int64(5), s.Quantity("BULK", whMain))
	assert.Len(t, res.Movements, 1)
}

func TestReserve_CantidadFueraDeRangoNoSumaStock(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Reserve(context.Background(), []entity.StockLine{
		{ProductID: "A", Quantity: math.MaxInt64},
		{ProductID: "A", Quantity: math.MaxInt64},
	}, "", entity.Reference{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(10), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())
}

func TestReserve_StockInsuficienteNoAplicaNada(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 5)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Reserve(context.Background(), lines("A", 2, "B", 1), "", entity.Reference{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "B", stockErr.ProductID)
	assert.Equal(t, int64(0), stockErr.Available)
	assert.Equal(t, int64(1), stockErr.Required)

	assert.Equal(t, int64(5), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())
}

func TestReserve_DemandaConsolidadaContraElTotal(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 7)
	e := newEngine(t, s, fullConfig(), nil)

	// Cada línea cabe por separado, pero la suma (2*3 + 2 = 8) no.
	_, err := e.Reserve(context.Background(), lines("COMBO", 3, "A", 2), "", entity.Reference{})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(8), stockErr.Required)
	assert.Equal(t, int64(7), s.Quantity("A", whMain))
}

func TestReserveRestore_IdaYVuelta(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	s.SetStock("B", whMain, 4)
	e := newEngine(t, s, fullConfig(), nil)
	ctx := context.Background()

	l := lines("COMBO", 2, "B", 3)
	_, err := e.Reserve(ctx, l, "", entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.Quantity("A", whMain))
	assert.Equal(t, int64(1), s.Quantity("B", whMain))

	res, err := e.Restore(ctx, l, "", entity.Reference{Type: entity.ReferenceTypeReturn})
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.Quantity("A", whMain))
	assert.Equal(t, int64(4), s.Quantity("B", whMain))
	for _, m := range res.Movements {
		assert.Equal(t, entity.MovementTypeIn, m.MovementType)
		assert.Equal(t, entity.ReferenceTypeReturn, m.ReferenceType)
	}
	assertLedgerConsistent(t, s)
}

func TestRestore_NoRevierteDescuentoGranel(t *testing.T) {
	s := newStore()
	s.SetStock("RETAIL", whMain, 300)
	s.SetStock("BULK", whMain, 5)
	e := newEngine(t, s, fullConfig(), nil)
	ctx := context.Background()

	_, err := e.Reserve(ctx, lines("RETAIL", 250), "", entity.Reference{})
	require.NoError(t, err)
	_, err = e.Restore(ctx, lines("RETAIL", 250), "", entity.Reference{})
	require.NoError(t, err)

	assert.Equal(t, int64(300), s.Quantity("RETAIL", whMain))
	// Asimetría documentada: el padre a granel queda descontado.
	assert.Equal(t, int64(3), s.Quantity("BULK", whMain))
}

func TestReplace_RestauraYReservaEnUnaTransaccion(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 3)
	s.SetStock("B", whMain, 0)
	e := newEngine(t, s, fullConfig(), nil)
	ctx := context.Background()

	_, err := e.Reserve(ctx, lines("A", 3), "", entity.Reference{})
	require.NoError(t, err)

	// Editar a A×2 + B×1 falla por B: se conserva la reserva original.
	_, err = e.Replace(ctx, lines("A", 3), lines("A", 2, "B", 1), "", entity.Reference{})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(0), s.Quantity("A", whMain))

	_, err = e.Replace(ctx, lines("A", 3), lines("A", 1), "", entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.Quantity("A", whMain))
	assertLedgerConsistent(t, s)
}

func TestReserve_BodegaInexistente(t *testing.T) {
	s := newStore()
	e := newEngine(t, s, fullConfig(), nil)
	_, err := e.Reserve(context.Background(), lines("A", 1), "no-existe", entity.Reference{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transfer
// ──────────────────────────────────────────────────────────────────────────────

func TestTransfer_MismaBodega(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Transfer(context.Background(), inventory.TransferInput{
		ProductID: "A", FromWarehouseID: whMain, ToWarehouseID: whMain, Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrSameWarehouse)
	assert.Equal(t, int64(10), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())
}

func TestTransfer_DosMovimientosConMismaReferencia(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Transfer(context.Background(), inventory.TransferInput{
		ProductID: "A", FromWarehouseID: whMain, ToWarehouseID: whSecond, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), s.Quantity("A", whMain))
	assert.Equal(t, int64(4), s.Quantity("A", whSecond))
	require.Len(t, res.Movements, 2)
	assert.Equal(t, entity.MovementTypeOut, res.Movements[0].MovementType)
	assert.Equal(t, entity.MovementTypeIn, res.Movements[1].MovementType)
	assert.Equal(t, res.Movements[0].ReferenceNumber, res.Movements[1].ReferenceNumber)
	assert.Equal(t, entity.ReferenceTypeTransfer, res.Movements[0].ReferenceType)
	assertLedgerConsistent(t, s)
}

func TestTransfer_StockInsuficiente(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 2)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Transfer(context.Background(), inventory.TransferInput{
		ProductID: "A", FromWarehouseID: whMain, ToWarehouseID: whSecond, Quantity: 3,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(0), s.Quantity("A", whSecond))
}

// ──────────────────────────────────────────────────────────────────────────────
// Adjust / Batch
// ──────────────────────────────────────────────────────────────────────────────

func TestAdjust_DanadoSeLimitaYVaACuarentena(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 15)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Adjust(context.Background(), inventory.AdjustInput{
		ProductID: "A", Mode: domaininv.AdjustModeSubtract, Quantity: 20, Reason: domaininv.ReasonDamaged,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Quantity("A", whMain))
	assert.Equal(t, int64(15), s.Quantity("A", whRejected))

	require.Len(t, res.Movements, 2)
	assert.Equal(t, int64(-15), res.Movements[0].QuantityChange)
	assert.Equal(t, entity.MovementTypeAdjustment, res.Movements[0].MovementType)
	assert.Equal(t, int64(15), res.Movements[1].QuantityChange)
	assert.Equal(t, entity.MovementTypeIn, res.Movements[1].MovementType)
	assert.Equal(t, whRejected, res.Movements[1].WarehouseID)
	assert.Equal(t, res.Movements[0].ReferenceNumber, res.Movements[1].ReferenceNumber)
	assertLedgerConsistent(t, s)
}

func TestAdjust_DestructivoSinCuarentenaConfigurada(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 15)
	e := newEngine(t, s, inventory.WarehouseConfig{DefaultWarehouseID: whMain}, nil)

	_, err := e.Adjust(context.Background(), inventory.AdjustInput{
		ProductID: "A", Mode: domaininv.AdjustModeSubtract, Quantity: 5, Reason: domaininv.ReasonExpired,
	})
	assert.ErrorIs(t, err, domain.ErrMissingConfiguration)
	assert.Equal(t, int64(15), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())
}

func TestAdjust_Modos(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)
	ctx := context.Background()

	_, err := e.Adjust(ctx, inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeAdd, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(15), s.Quantity("A", whMain))

	_, err = e.Adjust(ctx, inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeSet, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Quantity("A", whMain))

	// set sin cambio también deja movimiento.
	res, err := e.Adjust(ctx, inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeSet, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, int64(0), res.Movements[0].QuantityChange)

	// Motivo no destructivo: no se enruta a cuarentena.
	_, err = e.Adjust(ctx, inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeSubtract, Quantity: 1, Reason: domaininv.ReasonLost})
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Quantity("A", whRejected))

	_, err = e.Adjust(ctx, inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeAdd, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assertLedgerConsistent(t, s)
}

func TestAdjust_SumaFueraDeRango(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Adjust(context.Background(), inventory.AdjustInput{ProductID: "A", Mode: domaininv.AdjustModeAdd, Quantity: math.MaxInt64})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(10), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())
}

func TestAdjust_BundleNoTieneStock(t *testing.T) {
	s := newStore()
	e := newEngine(t, s, fullConfig(), nil)
	_, err := e.Adjust(context.Background(), inventory.AdjustInput{ProductID: "COMBO", Mode: domaininv.AdjustModeAdd, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidComposition)
}

func TestBatch_TodoONada(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	_, err := e.Batch(context.Background(), []inventory.AdjustInput{
		{ProductID: "A", Mode: domaininv.AdjustModeAdd, Quantity: 5},
		{ProductID: "NO-EXISTE", Mode: domaininv.AdjustModeAdd, Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(10), s.Quantity("A", whMain))
	assert.Empty(t, s.Movements())

	res, err := e.Batch(context.Background(), []inventory.AdjustInput{
		{ProductID: "A", Mode: domaininv.AdjustModeAdd, Quantity: 5},
		{ProductID: "A", Mode: domaininv.AdjustModeSubtract, Quantity: 2},
		{ProductID: "B", WarehouseID: whSecond, Mode: domaininv.AdjustModeSet, Quantity: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), s.Quantity("A", whMain))
	assert.Equal(t, int64(7), s.Quantity("B", whSecond))
	require.Len(t, res.Movements, 3)
	for _, m := range res.Movements {
		assert.Equal(t, res.Reference.Number, m.ReferenceNumber)
	}
	assertLedgerConsistent(t, s)
}

// ──────────────────────────────────────────────────────────────────────────────
// Receive
// ──────────────────────────────────────────────────────────────────────────────

func TestReceive_ActualizaCostoPromedio(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	res, err := e.Receive(context.Background(), inventory.ReceiveInput{
		ProductID: "A", Quantity: 10, UnitCost: decimal.NewFromInt(200), ReferenceNumber: "PO-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), s.Quantity("A", whMain))
	p, _ := s.Product("A")
	assert.True(t, p.Cost.Equal(decimal.NewFromInt(150)), "costo %s", p.Cost)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, entity.ReferenceTypePurchase, res.Movements[0].ReferenceType)
	assert.Equal(t, "PO-1", res.Movements[0].ReferenceNumber)
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia, reintentos y eventos
// ──────────────────────────────────────────────────────────────────────────────

func TestReserve_ConcurrenteNuncaSobrevende(t *testing.T) {
	const (
		stock   = 10
		perCall = 3
		callers = 8
	)
	s := newStore()
	s.SetStock("A", whMain, stock)
	e := newEngine(t, s, fullConfig(), nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Reserve(context.Background(), lines("A", perCall), "", entity.Reference{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientStock):
				failures++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock/perCall, successes)
	assert.Equal(t, callers-stock/perCall, failures)
	assert.Equal(t, int64(stock%perCall), s.Quantity("A", whMain))
	assertLedgerConsistent(t, s)
}

func TestExecute_ReintentaConflictos(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	e := newEngine(t, s, fullConfig(), nil)

	s.InjectConflicts(2)
	_, err := e.Reserve(context.Background(), lines("A", 1), "", entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), s.Quantity("A", whMain))

	s.InjectConflicts(10)
	_, err = e.Reserve(context.Background(), lines("A", 1), "", entity.Reference{})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, int64(9), s.Quantity("A", whMain))
}

func TestReserve_NumeroEstableEntreReintentos(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 10)
	runner := &flakyRunner{store: s, failures: 2}
	e, err := inventory.NewEngine(runner, fullConfig(), nil, zerolog.Nop(), 3)
	require.NoError(t, err)

	res, err := e.Reserve(context.Background(), lines("A", 1), "", entity.Reference{})
	require.NoError(t, err)
	require.Len(t, runner.numbers, 3)
	for _, n := range runner.numbers {
		assert.Equal(t, res.Reference.Number, n)
	}
	assert.Equal(t, int64(9), s.Quantity("A", whMain))

	runner.failures = 1
	runner.numbers = nil
	_, err = e.Replace(context.Background(), lines("A", 1), lines("A", 2), "", entity.Reference{})
	require.NoError(t, err)
	require.Len(t, runner.numbers, 2)
	assert.Equal(t, runner.numbers[0], runner.numbers[1])
}

func TestExecute_PublicacionAcotadaTrasCommit(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 3)
	pub := &blockingPublisher{}
	e := newEngine(t, s, fullConfig(), pub)
	e.SetPublishTimeout(20 * time.Millisecond)

	start := time.Now()
	_, err := e.Reserve(context.Background(), lines("A", 1), "", entity.Reference{})
	require.NoError(t, err, "el fallo del broker no revierte ni falla la operación")
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, pub.err, context.DeadlineExceeded)
	assert.Equal(t, int64(2), s.Quantity("A", whMain))
}

func TestExecute_PublicaSoloTrasCommit(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 1)
	pub := &fakePublisher{}
	e := newEngine(t, s, fullConfig(), pub)
	ctx := context.Background()

	_, err := e.Reserve(ctx, lines("A", 5), "", entity.Reference{})
	require.Error(t, err)
	assert.Empty(t, pub.batches)

	_, err = e.Reserve(ctx, lines("A", 1), "", entity.Reference{ID: "sale-1", Number: "SAL-1"})
	require.NoError(t, err)
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "SAL-1", pub.batches[0][0].ReferenceNumber)
	assert.Equal(t, "sale-1", pub.batches[0][0].ReferenceID)
}

func TestReserve_RegistraUsuarioDelContexto(t *testing.T) {
	s := newStore()
	s.SetStock("A", whMain, 1)
	e := newEngine(t, s, fullConfig(), nil)

	ctx := inventory.WithUserID(context.Background(), "user-42")
	res, err := e.Reserve(ctx, lines("A", 1), "", entity.Reference{})
	require.NoError(t, err)
	assert.Equal(t, "user-42", res.Movements[0].CreatedBy)
}

func TestNewEngine_SinBodegaPorDefecto(t *testing.T) {
	_, err := inventory.NewEngine(memory.NewStore(), inventory.WarehouseConfig{}, nil, zerolog.Nop(), 3)
	assert.ErrorIs(t, err, domain.ErrMissingConfiguration)
}
