package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Engine motor transaccional del libro de stock.
// Cada operación bloquea sus filas (SELECT FOR UPDATE en orden fijo), muta en memoria,
// escribe un movimiento por cambio y confirma; cualquier error hace Rollback completo.
type Engine struct {
	txRunner   TxRunner
	cfg        WarehouseConfig
	publisher  EventPublisher
	log        zerolog.Logger
	maxRetries int
	// tope de espera de la publicación tras el commit
	publishTimeout time.Duration
	now            func() time.Time
}

// DefaultPublishTimeout espera máxima de la publicación posterior al commit.
const DefaultPublishTimeout = 2 * time.Second

// NewEngine construye el motor. publisher puede ser nil (sin publicación de eventos).
func NewEngine(txRunner TxRunner, cfg WarehouseConfig, publisher EventPublisher, log zerolog.Logger, maxRetries int) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Engine{
		txRunner:       txRunner,
		cfg:            cfg,
		publisher:      publisher,
		log:            log.With().Str("component", "stock_engine").Logger(),
		maxRetries:     maxRetries,
		publishTimeout: DefaultPublishTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetPublishTimeout cambia la espera máxima de publicación; d <= 0 deja el valor por defecto.
func (e *Engine) SetPublishTimeout(d time.Duration) {
	if d > 0 {
		e.publishTimeout = d
	}
}

// Config devuelve la configuración de bodegas inyectada.
func (e *Engine) Config() WarehouseConfig {
	return e.cfg
}

// AdjustInput ajuste manual de un producto en una bodega (WarehouseID vacío = bodega por defecto).
type AdjustInput struct {
	ProductID   string
	WarehouseID string
	Mode        inventory.AdjustMode
	Quantity    int64
	Reason      inventory.AdjustmentReason
	Notes       string
}

// TransferInput traslado entre bodegas.
type TransferInput struct {
	ProductID       string
	FromWarehouseID string
	ToWarehouseID   string
	Quantity        int64
	Notes           string
}

// ReceiveInput entrada de mercancía por compra; UnitCost alimenta el costo promedio ponderado.
type ReceiveInput struct {
	ProductID       string
	WarehouseID     string
	Quantity        int64
	UnitCost        decimal.Decimal
	ReferenceID     string
	ReferenceNumber string
	Notes           string
}

// ──────────────────────────────────────────────────────────────────────────────
// Ejecución con reintento
// ──────────────────────────────────────────────────────────────────────────────

// Execute corre fn en una transacción, reintenta la operación completa ante ErrConcurrencyConflict
// y publica los movimientos después del commit. Los flujos (opname, pedidos, ventas) lo usan
// para componer las variantes *InTx con sus propias escrituras.
func (e *Engine) Execute(ctx context.Context, op string, fn func(repos TxRepos) (*Result, error)) (*Result, error) {
	var result *Result
	for attempt := 1; ; attempt++ {
		err := e.txRunner.Run(ctx, func(repos TxRepos) error {
			r, err := fn(repos)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt > e.maxRetries || ctx.Err() != nil {
			return nil, err
		}
		e.log.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Msg("conflicto de concurrencia, reintentando")
	}
	if result == nil {
		result = &Result{}
	}
	ev := e.log.Info()
	if len(result.Movements) == 0 {
		ev = e.log.Debug()
	}
	ev.Str("operation", op).
		Str("reference", result.Reference.Number).
		Int("entries", len(result.Movements)).
		Msg("operación de stock confirmada")
	e.publish(ctx, result)
	return result, nil
}

// publish no falla la operación: el stock ya está confirmado.
func (e *Engine) publish(ctx context.Context, result *Result) {
	if e.publisher == nil || len(result.Movements) == 0 {
		return
	}
	// El commit ya ocurrió: la cancelación de la petición no debe abortar la publicación.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
	defer cancel()
	if err := e.publisher.PublishMovements(pubCtx, result.Movements); err != nil {
		e.log.Error().Err(err).Str("reference", result.Reference.Number).Msg("no se pudieron publicar los movimientos")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Reserve / Restore / Replace
// ──────────────────────────────────────────────────────────────────────────────

// Reserve descuenta las líneas consolidadas (bundles expandidos) y aplica el descuento a granel.
// Falla con InsufficientStockError nombrando el primer producto sin stock suficiente.
func (e *Engine) Reserve(ctx context.Context, lines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	ref = e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixSale)
	return e.Execute(ctx, "reserve", func(repos TxRepos) (*Result, error) {
		return e.ReserveInTx(ctx, repos, lines, warehouseID, ref)
	})
}

// ReserveInTx igual que Reserve usando los repositorios de la transacción del llamador.
func (e *Engine) ReserveInTx(ctx context.Context, repos TxRepos, lines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("reserva sin líneas: %w", domain.ErrInvalidInput)
	}
	return e.mutateLines(ctx, repos, nil, lines, warehouseID, e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixSale))
}

// Restore devuelve al stock las cantidades consolidadas (cancelación, anulación, devolución).
// No revierte el descuento a granel hecho por Reserve: el stock del padre no queda simétrico.
func (e *Engine) Restore(ctx context.Context, lines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	ref = e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixSale)
	return e.Execute(ctx, "restore", func(repos TxRepos) (*Result, error) {
		return e.RestoreInTx(ctx, repos, lines, warehouseID, ref)
	})
}

// RestoreInTx igual que Restore dentro de la transacción del llamador.
func (e *Engine) RestoreInTx(ctx context.Context, repos TxRepos, lines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("restauración sin líneas: %w", domain.ErrInvalidInput)
	}
	return e.mutateLines(ctx, repos, lines, nil, warehouseID, e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixSale))
}

// Replace restaura oldLines y reserva newLines en una sola transacción (edición de pedido).
func (e *Engine) Replace(ctx context.Context, oldLines, newLines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	ref = e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixOrder)
	return e.Execute(ctx, "replace", func(repos TxRepos) (*Result, error) {
		return e.ReplaceInTx(ctx, repos, oldLines, newLines, warehouseID, ref)
	})
}

// ReplaceInTx igual que Replace dentro de la transacción del llamador.
func (e *Engine) ReplaceInTx(ctx context.Context, repos TxRepos, oldLines, newLines []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	if len(newLines) == 0 {
		return nil, fmt.Errorf("reemplazo sin líneas nuevas: %w", domain.ErrInvalidInput)
	}
	return e.mutateLines(ctx, repos, oldLines, newLines, warehouseID, e.reference(ref, entity.ReferenceTypeSale, inventory.RefPrefixOrder))
}

// mutateLines restaura y luego reserva, bloqueando de una vez todas las filas de ambos lados.
func (e *Engine) mutateLines(ctx context.Context, repos TxRepos, restore, reserve []entity.StockLine, warehouseID string, ref entity.Reference) (*Result, error) {
	wh, err := e.warehouse(ctx, repos, warehouseID)
	if err != nil {
		return nil, err
	}
	catalog, err := loadCatalog(ctx, repos.Products, lineProductIDs(restore, reserve))
	if err != nil {
		return nil, err
	}

	var back, out *inventory.Resolution
	var keys []entity.StockKey
	if len(restore) > 0 {
		if back, err = inventory.Resolve(restore, catalog); err != nil {
			return nil, err
		}
		for _, d := range back.Demands {
			keys = append(keys, entity.StockKey{ProductID: d.ProductID, WarehouseID: wh})
		}
	}
	if len(reserve) > 0 {
		if out, err = inventory.Resolve(reserve, catalog); err != nil {
			return nil, err
		}
		keys = append(keys, out.Keys(wh)...)
	}

	uow, err := e.begin(ctx, repos, ref, keys)
	if err != nil {
		return nil, err
	}
	if back != nil {
		for _, d := range back.Demands {
			key := entity.StockKey{ProductID: d.ProductID, WarehouseID: wh}
			if err := uow.apply(key, d.Quantity, entity.MovementTypeIn, catalog[d.ProductID].Cost, ""); err != nil {
				return nil, err
			}
		}
	}
	if out != nil {
		for _, d := range out.Demands {
			key := entity.StockKey{ProductID: d.ProductID, WarehouseID: wh}
			if err := uow.apply(key, -d.Quantity, entity.MovementTypeOut, catalog[d.ProductID].Cost, ""); err != nil {
				return nil, err
			}
		}
		if err := e.applyBulkDeductions(uow, out, wh, catalog); err != nil {
			return nil, err
		}
	}
	return uow.flush(ctx)
}

// applyBulkDeductions paso secundario de la reserva: descuenta unidades enteras del padre a granel.
// Cada línea se evalúa contra el stock restante del padre; si no alcanza se omite sin error.
// Las cantidades aceptadas se agrupan en un movimiento por padre.
func (e *Engine) applyBulkDeductions(uow *unitOfWork, res *inventory.Resolution, wh string, catalog map[string]*entity.Product) error {
	accepted := make(map[string]int64)
	var parents []string
	for _, b := range res.BulkDeductions {
		key := entity.StockKey{ProductID: b.ParentID, WarehouseID: wh}
		if uow.quantity(key)-accepted[b.ParentID] < b.Quantity {
			e.log.Debug().
				Str("product_id", b.ChildID).
				Str("parent_id", b.ParentID).
				Int64("extra", b.Quantity).
				Int64("available", uow.quantity(key)-accepted[b.ParentID]).
				Msg("descuento a granel omitido por stock insuficiente del padre")
			continue
		}
		if _, ok := accepted[b.ParentID]; !ok {
			parents = append(parents, b.ParentID)
		}
		accepted[b.ParentID] += b.Quantity
	}
	for _, parentID := range parents {
		key := entity.StockKey{ProductID: parentID, WarehouseID: wh}
		if err := uow.apply(key, -accepted[parentID], entity.MovementTypeOut, catalog[parentID].Cost, "descuento a granel"); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transfer
// ──────────────────────────────────────────────────────────────────────────────

// Transfer resta de la bodega origen y suma en destino con dos movimientos que comparten número.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (*Result, error) {
	if in.FromWarehouseID != "" && in.FromWarehouseID == in.ToWarehouseID {
		return nil, domain.ErrSameWarehouse
	}
	if in.ProductID == "" || in.FromWarehouseID == "" || in.ToWarehouseID == "" || in.Quantity <= 0 {
		return nil, fmt.Errorf("traslado: %w", domain.ErrInvalidInput)
	}
	ref := e.reference(entity.Reference{}, entity.ReferenceTypeTransfer, inventory.RefPrefixTransfer)
	return e.Execute(ctx, "transfer", func(repos TxRepos) (*Result, error) {
		for _, id := range []string{in.FromWarehouseID, in.ToWarehouseID} {
			if _, err := e.warehouse(ctx, repos, id); err != nil {
				return nil, err
			}
		}
		product, err := loadStockedProduct(ctx, repos.Products, in.ProductID)
		if err != nil {
			return nil, err
		}
		from := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.FromWarehouseID}
		to := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.ToWarehouseID}
		uow, err := e.begin(ctx, repos, ref, []entity.StockKey{from, to})
		if err != nil {
			return nil, err
		}
		if err := uow.apply(from, -in.Quantity, entity.MovementTypeOut, product.Cost, in.Notes); err != nil {
			return nil, err
		}
		if err := uow.apply(to, in.Quantity, entity.MovementTypeIn, product.Cost, in.Notes); err != nil {
			return nil, err
		}
		return uow.flush(ctx)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Adjust / Batch
// ──────────────────────────────────────────────────────────────────────────────

// Adjust ajuste manual (add, subtract, set). Con motivo destructivo y delta negativo
// el stock retirado entra a la bodega de cuarentena con el mismo número de referencia.
func (e *Engine) Adjust(ctx context.Context, in AdjustInput) (*Result, error) {
	return e.Batch(ctx, []AdjustInput{in})
}

// Batch aplica todos los ajustes en una sola transacción; un fallo aborta el lote completo.
func (e *Engine) Batch(ctx context.Context, ins []AdjustInput) (*Result, error) {
	ref := e.reference(entity.Reference{}, entity.ReferenceTypeAdjustment, inventory.RefPrefixAdjustment)
	return e.Execute(ctx, "adjust", func(repos TxRepos) (*Result, error) {
		return e.AdjustInTx(ctx, repos, ins, ref)
	})
}

// AdjustInTx aplica los ajustes dentro de la transacción del llamador (p. ej. finalización de opname).
// Todas las filas, incluida la cuarentena, se bloquean antes del primer cambio.
func (e *Engine) AdjustInTx(ctx context.Context, repos TxRepos, ins []AdjustInput, ref entity.Reference) (*Result, error) {
	if len(ins) == 0 {
		return nil, fmt.Errorf("lote de ajustes vacío: %w", domain.ErrInvalidInput)
	}
	ref = e.reference(ref, entity.ReferenceTypeAdjustment, inventory.RefPrefixAdjustment)

	normalized := make([]AdjustInput, len(ins))
	ids := make([]string, 0, len(ins))
	var keys []entity.StockKey
	for i, in := range ins {
		n, err := e.normalizeAdjust(in)
		if err != nil {
			return nil, err
		}
		if _, err := e.warehouse(ctx, repos, n.WarehouseID); err != nil {
			return nil, err
		}
		normalized[i] = n
		ids = append(ids, n.ProductID)
		keys = append(keys, entity.StockKey{ProductID: n.ProductID, WarehouseID: n.WarehouseID})
		if n.Reason.IsDestructive() && e.cfg.HasRejected() && n.WarehouseID != e.cfg.RejectedWarehouseID {
			keys = append(keys, entity.StockKey{ProductID: n.ProductID, WarehouseID: e.cfg.RejectedWarehouseID})
		}
	}

	catalog, err := repos.Products.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := checkStocked(catalog, id); err != nil {
			return nil, err
		}
	}

	uow, err := e.begin(ctx, repos, ref, keys)
	if err != nil {
		return nil, err
	}
	for _, in := range normalized {
		if err := e.applyAdjust(uow, catalog[in.ProductID], in); err != nil {
			return nil, err
		}
	}
	return uow.flush(ctx)
}

func (e *Engine) normalizeAdjust(in AdjustInput) (AdjustInput, error) {
	if in.ProductID == "" {
		return in, fmt.Errorf("ajuste sin producto: %w", domain.ErrInvalidInput)
	}
	mode, err := inventory.ParseAdjustMode(string(in.Mode))
	if err != nil {
		return in, err
	}
	if err := mode.Validate(in.Quantity); err != nil {
		return in, err
	}
	reason, err := inventory.ParseAdjustmentReason(string(in.Reason))
	if err != nil {
		return in, err
	}
	in.Mode = mode
	in.Reason = reason
	in.WarehouseID = e.cfg.Resolve(in.WarehouseID)
	return in, nil
}

// applyAdjust subtract y set nunca fallan por stock: el delta ya viene limitado a la cantidad actual.
func (e *Engine) applyAdjust(uow *unitOfWork, product *entity.Product, in AdjustInput) error {
	key := entity.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}
	delta := in.Mode.Delta(uow.quantity(key), in.Quantity)
	if err := uow.apply(key, delta, entity.MovementTypeAdjustment, product.Cost, adjustNotes(in)); err != nil {
		return err
	}
	if !in.Reason.IsDestructive() || delta >= 0 || in.WarehouseID == e.cfg.RejectedWarehouseID {
		return nil
	}
	if !e.cfg.HasRejected() {
		return fmt.Errorf("ajuste %s sin bodega de cuarentena: %w", in.Reason, domain.ErrMissingConfiguration)
	}
	rejected := entity.StockKey{ProductID: in.ProductID, WarehouseID: e.cfg.RejectedWarehouseID}
	return uow.apply(rejected, -delta, entity.MovementTypeIn, product.Cost, "cuarentena: "+string(in.Reason))
}

func adjustNotes(in AdjustInput) string {
	if in.Notes != "" {
		return in.Notes
	}
	if in.Reason == inventory.ReasonNormal {
		return ""
	}
	return string(in.Reason)
}

// ──────────────────────────────────────────────────────────────────────────────
// Receive (compras)
// ──────────────────────────────────────────────────────────────────────────────

// Receive suma la mercancía recibida y recalcula el costo promedio ponderado del producto.
func (e *Engine) Receive(ctx context.Context, in ReceiveInput) (*Result, error) {
	if in.ProductID == "" || in.Quantity <= 0 || in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("recepción: %w", domain.ErrInvalidInput)
	}
	ref := e.reference(entity.Reference{ID: in.ReferenceID, Number: in.ReferenceNumber}, entity.ReferenceTypePurchase, inventory.RefPrefixPurchase)
	return e.Execute(ctx, "receive", func(repos TxRepos) (*Result, error) {
		wh, err := e.warehouse(ctx, repos, in.WarehouseID)
		if err != nil {
			return nil, err
		}
		product, err := loadStockedProduct(ctx, repos.Products, in.ProductID)
		if err != nil {
			return nil, err
		}
		key := entity.StockKey{ProductID: in.ProductID, WarehouseID: wh}
		uow, err := e.begin(ctx, repos, ref, []entity.StockKey{key})
		if err != nil {
			return nil, err
		}
		newCost := inventory.WeightedAverageCost(uow.quantity(key), product.Cost, in.Quantity, in.UnitCost)
		if err := repos.Products.UpdateCost(ctx, product.ID, newCost); err != nil {
			return nil, err
		}
		if err := uow.apply(key, in.Quantity, entity.MovementTypeIn, in.UnitCost, in.Notes); err != nil {
			return nil, err
		}
		return uow.flush(ctx)
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// reference completa tipo y número de referencia cuando el llamador no los trae.
func (e *Engine) reference(ref entity.Reference, refType, prefix string) entity.Reference {
	if ref.Type == "" {
		ref.Type = refType
	}
	if ref.Number == "" {
		ref.Number = inventory.NewReferenceNumber(prefix, e.now())
	}
	return ref
}

// warehouse resuelve la bodega (vacía = por defecto) y verifica que exista.
func (e *Engine) warehouse(ctx context.Context, repos TxRepos, warehouseID string) (string, error) {
	id := e.cfg.Resolve(warehouseID)
	wh, err := repos.Warehouses.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if wh == nil {
		return "", fmt.Errorf("bodega %s: %w", id, domain.ErrNotFound)
	}
	return id, nil
}

// loadCatalog carga los productos de las líneas más los miembros de bundle y padres a granel
// que referencian directamente. Los padres de un miembro no se cargan: un miembro al detal
// no descuenta a granel.
func loadCatalog(ctx context.Context, products repository.ProductRepository, ids []string) (map[string]*entity.Product, error) {
	catalog, err := products.GetByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	extra := inventory.ReferencedProductIDs(catalog)
	if len(extra) == 0 {
		return catalog, nil
	}
	more, err := products.GetByIDs(ctx, extra)
	if err != nil {
		return nil, err
	}
	for id, p := range more {
		catalog[id] = p
	}
	return catalog, nil
}

func loadStockedProduct(ctx context.Context, products repository.ProductRepository, id string) (*entity.Product, error) {
	p, err := products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	if p.IsBundle() {
		return nil, &domain.CompositionError{ProductID: id, Reason: "un bundle no tiene stock propio"}
	}
	return p, nil
}

func checkStocked(catalog map[string]*entity.Product, id string) error {
	p, ok := catalog[id]
	if !ok {
		return fmt.Errorf("producto %s: %w", id, domain.ErrNotFound)
	}
	if p.IsBundle() {
		return &domain.CompositionError{ProductID: id, Reason: "un bundle no tiene stock propio"}
	}
	return nil
}

func lineProductIDs(groups ...[]entity.StockLine) []string {
	var ids []string
	for _, lines := range groups {
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
