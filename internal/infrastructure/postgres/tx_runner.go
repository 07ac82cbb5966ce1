package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

var tracer = otel.Tracer("stock-ledger/postgres")

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL read committed.
// La exclusión entre operaciones la dan los SELECT ... FOR UPDATE de las filas de stock.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner construye el runner con el pool. lockTimeout 0 = sin límite de espera de bloqueos.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Errores de serialización, deadlock o lock_timeout salen como domain.ErrConcurrencyConflict.
func (r *TxRunner) Run(ctx context.Context, fn func(repos inventory.TxRepos) error) (err error) {
	ctx, span := tracer.Start(ctx, "ledger.tx", trace.WithAttributes(
		attribute.String("tx.isolation", string(pgx.ReadCommitted)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback con contexto propio: debe completarse aunque ctx esté cancelado.
	defer func() { _ = tx.Rollback(context.Background()) }()

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(reposFor(tx)); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", mapPgError(err))
	}
	return nil
}

// reposFor construye todos los repositorios sobre el mismo Querier.
func reposFor(q Querier) inventory.TxRepos {
	return inventory.TxRepos{
		Stock:      NewStockRepository(q),
		Movements:  NewStockMovementRepository(q),
		Products:   NewProductRepository(q),
		Warehouses: NewWarehouseRepository(q),
		Opname:     NewOpnameRepository(q),
		Orders:     NewOrderRepository(q),
		Sales:      NewSaleRepository(q),
	}
}

// Repos repositorios sobre el pool, para lecturas fuera de transacción.
func Repos(pool *pgxpool.Pool) inventory.TxRepos {
	return reposFor(pool)
}
