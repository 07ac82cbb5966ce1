package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.OpnameRepository = (*OpnameRepo)(nil)

// OpnameRepo sesiones de conteo físico y sus líneas.
type OpnameRepo struct {
	q Querier
}

// NewOpnameRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOpnameRepository(q Querier) *OpnameRepo {
	return &OpnameRepo{q: q}
}

const sessionColumns = `id, number, warehouse_id, status, notes, created_by, created_at, finalized_at, deleted_at`

func scanSession(row pgx.Row) (*entity.OpnameSession, error) {
	var s entity.OpnameSession
	var createdBy *string
	if err := row.Scan(&s.ID, &s.Number, &s.WarehouseID, &s.Status, &s.Notes, &createdBy,
		&s.CreatedAt, &s.FinalizedAt, &s.DeletedAt); err != nil {
		return nil, err
	}
	s.CreatedBy = deref(createdBy)
	return &s, nil
}

// Create inserta la sesión y todas sus líneas.
func (r *OpnameRepo) Create(ctx context.Context, s *entity.OpnameSession) error {
	b := &pgx.Batch{}
	b.Queue(`INSERT INTO opname_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Number, s.WarehouseID, s.Status, s.Notes, nullIfEmpty(s.CreatedBy),
		s.CreatedAt, s.FinalizedAt, s.DeletedAt)
	for _, l := range s.Lines {
		b.Queue(`
			INSERT INTO opname_lines (id, session_id, product_id, system_qty, physical_qty, difference, counted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, s.ID, l.ProductID, l.SystemQty, l.PhysicalQty, l.Difference, l.CountedAt)
	}
	if err := r.q.SendBatch(ctx, b).Close(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert opname session: número %s duplicado: %w", s.Number, err)
		}
		return fmt.Errorf("insert opname session: %w", err)
	}
	return nil
}

// GetForUpdate bloquea la cabecera de la sesión y carga sus líneas.
func (r *OpnameRepo) GetForUpdate(ctx context.Context, id string) (*entity.OpnameSession, error) {
	return r.get(ctx, id, true)
}

// GetByID sesión con líneas; nil si no existe.
func (r *OpnameRepo) GetByID(ctx context.Context, id string) (*entity.OpnameSession, error) {
	return r.get(ctx, id, false)
}

func (r *OpnameRepo) get(ctx context.Context, id string, forUpdate bool) (*entity.OpnameSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM opname_sessions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s, err := scanSession(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get opname session: %w", err)
	}
	if s.Lines, err = r.lines(ctx, s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *OpnameRepo) lines(ctx context.Context, sessionID string) ([]entity.OpnameLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, session_id, product_id, system_qty, physical_qty, difference, counted_at
		FROM opname_lines WHERE session_id = $1 ORDER BY product_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list opname lines: %w", err)
	}
	defer rows.Close()
	var list []entity.OpnameLine
	for rows.Next() {
		var l entity.OpnameLine
		if err := rows.Scan(&l.ID, &l.SessionID, &l.ProductID, &l.SystemQty, &l.PhysicalQty, &l.Difference, &l.CountedAt); err != nil {
			return nil, fmt.Errorf("scan opname line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// ListByWarehouse sesiones no borradas (warehouseID vacío = todas), más recientes primero, sin líneas.
func (r *OpnameRepo) ListByWarehouse(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.OpnameSession, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+sessionColumns+` FROM opname_sessions
		WHERE deleted_at IS NULL AND ($1 = '' OR warehouse_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list opname sessions: %w", err)
	}
	defer rows.Close()
	var list []*entity.OpnameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opname session: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// UpdateLine guarda la cantidad contada de una línea.
func (r *OpnameRepo) UpdateLine(ctx context.Context, l *entity.OpnameLine) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE opname_lines SET physical_qty = $3, difference = $4, counted_at = $5
		WHERE id = $1 AND session_id = $2`,
		l.ID, l.SessionID, l.PhysicalQty, l.Difference, l.CountedAt)
	if err != nil {
		return fmt.Errorf("update opname line: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("update opname line: línea %s no existe", l.ID)
	}
	return nil
}

// Update guarda estado, notas, finalización y borrado lógico de la cabecera.
func (r *OpnameRepo) Update(ctx context.Context, s *entity.OpnameSession) error {
	_, err := r.q.Exec(ctx, `
		UPDATE opname_sessions SET status = $2, notes = $3, finalized_at = $4, deleted_at = $5
		WHERE id = $1`,
		s.ID, s.Status, s.Notes, s.FinalizedAt, s.DeletedAt)
	if err != nil {
		return fmt.Errorf("update opname session: %w", err)
	}
	return nil
}
