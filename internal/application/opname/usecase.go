// Package opname implementa las sesiones de conteo físico (opname) sobre el motor de stock.
package opname

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// UseCase ciclo de vida de la sesión: counting -> finalized, o borrado lógico mientras cuenta.
// La finalización aplica todas las diferencias y cierra la sesión en una sola transacción.
type UseCase struct {
	engine *inventory.Engine
	repo   repository.OpnameRepository
	log    zerolog.Logger
}

// NewUseCase construye el caso de uso. repo se usa solo para lecturas fuera de transacción.
func NewUseCase(engine *inventory.Engine, repo repository.OpnameRepository, log zerolog.Logger) *UseCase {
	return &UseCase{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("component", "opname").Logger(),
	}
}

// Start abre una sesión y toma la foto del stock de cada producto estándar activo de la bodega.
func (uc *UseCase) Start(ctx context.Context, warehouseID, notes string) (*entity.OpnameSession, error) {
	whID := uc.engine.Config().Resolve(warehouseID)
	var session *entity.OpnameSession
	_, err := uc.engine.Execute(ctx, "opname_start", func(repos inventory.TxRepos) (*inventory.Result, error) {
		wh, err := repos.Warehouses.GetByID(ctx, whID)
		if err != nil {
			return nil, err
		}
		if wh == nil {
			return nil, fmt.Errorf("bodega %s: %w", whID, domain.ErrNotFound)
		}
		products, err := repos.Products.ListActiveStandard(ctx)
		if err != nil {
			return nil, err
		}
		levels, err := repos.Stock.ListByWarehouse(ctx, whID)
		if err != nil {
			return nil, err
		}
		current := make(map[string]int64, len(levels))
		for _, l := range levels {
			current[l.ProductID] = l.Quantity
		}

		now := time.Now().UTC()
		s := &entity.OpnameSession{
			ID:          uuid.New().String(),
			Number:      domaininv.NewReferenceNumber(domaininv.RefPrefixOpname, now),
			WarehouseID: whID,
			Status:      entity.OpnameStatusCounting,
			Notes:       notes,
			CreatedBy:   inventory.UserIDFromContext(ctx),
			CreatedAt:   now,
			Lines:       make([]entity.OpnameLine, 0, len(products)),
		}
		for _, p := range products {
			s.Lines = append(s.Lines, entity.OpnameLine{
				ID:        uuid.New().String(),
				SessionID: s.ID,
				ProductID: p.ID,
				SystemQty: current[p.ID],
			})
		}
		if err := repos.Opname.Create(ctx, s); err != nil {
			return nil, err
		}
		session = s
		return &inventory.Result{Reference: sessionRef(s)}, nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session", session.Number).Str("warehouse_id", whID).Int("lines", len(session.Lines)).Msg("sesión de conteo iniciada")
	return session, nil
}

// RecordCount registra la cantidad física de una línea y recalcula la diferencia.
func (uc *UseCase) RecordCount(ctx context.Context, sessionID, lineID string, physicalQty int64) (*entity.OpnameLine, error) {
	if physicalQty < 0 {
		return nil, fmt.Errorf("cantidad física %d: %w", physicalQty, domain.ErrInvalidInput)
	}
	var line *entity.OpnameLine
	_, err := uc.engine.Execute(ctx, "opname_count", func(repos inventory.TxRepos) (*inventory.Result, error) {
		s, err := lockCounting(ctx, repos, sessionID)
		if err != nil {
			return nil, err
		}
		for i := range s.Lines {
			if s.Lines[i].ID != lineID {
				continue
			}
			l := s.Lines[i]
			l.SetPhysical(physicalQty, time.Now().UTC())
			if err := repos.Opname.UpdateLine(ctx, &l); err != nil {
				return nil, err
			}
			line = &l
			return &inventory.Result{Reference: sessionRef(s)}, nil
		}
		return nil, fmt.Errorf("línea %s: %w", lineID, domain.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// Finalize exige todas las líneas contadas; ajusta cada diferencia distinta de cero
// (positiva add, negativa subtract) y marca la sesión finalizada, todo o nada.
func (uc *UseCase) Finalize(ctx context.Context, sessionID string) (*entity.OpnameSession, error) {
	var session *entity.OpnameSession
	res, err := uc.engine.Execute(ctx, "opname_finalize", func(repos inventory.TxRepos) (*inventory.Result, error) {
		s, err := lockCounting(ctx, repos, sessionID)
		if err != nil {
			return nil, err
		}
		missing := 0
		var adjustments []inventory.AdjustInput
		for _, l := range s.Lines {
			if !l.Counted() {
				missing++
				continue
			}
			if diff := *l.Difference; diff != 0 {
				adjustments = append(adjustments, varianceAdjustment(s, l.ProductID, diff))
			}
		}
		if missing > 0 {
			return nil, &domain.IncompleteCountError{SessionID: s.ID, Missing: missing}
		}

		result := &inventory.Result{Reference: sessionRef(s)}
		if len(adjustments) > 0 {
			if result, err = uc.engine.AdjustInTx(ctx, repos, adjustments, sessionRef(s)); err != nil {
				return nil, err
			}
		}
		now := time.Now().UTC()
		s.Status = entity.OpnameStatusFinalized
		s.FinalizedAt = &now
		if err := repos.Opname.Update(ctx, s); err != nil {
			return nil, err
		}
		session = s
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("session", session.Number).Int("adjustments", len(res.Movements)).Msg("sesión de conteo finalizada")
	return session, nil
}

// Delete borrado lógico; una sesión finalizada no se puede borrar.
func (uc *UseCase) Delete(ctx context.Context, sessionID string) error {
	_, err := uc.engine.Execute(ctx, "opname_delete", func(repos inventory.TxRepos) (*inventory.Result, error) {
		s, err := lockCounting(ctx, repos, sessionID)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		s.DeletedAt = &now
		if err := repos.Opname.Update(ctx, s); err != nil {
			return nil, err
		}
		return &inventory.Result{Reference: sessionRef(s)}, nil
	})
	return err
}

// Get devuelve la sesión con sus líneas; las borradas se tratan como inexistentes.
func (uc *UseCase) Get(ctx context.Context, sessionID string) (*entity.OpnameSession, error) {
	s, err := uc.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.IsDeleted() {
		return nil, fmt.Errorf("sesión %s: %w", sessionID, domain.ErrNotFound)
	}
	return s, nil
}

// List sesiones no borradas de una bodega (vacía = todas), más recientes primero.
func (uc *UseCase) List(ctx context.Context, warehouseID string, limit, offset int) ([]*entity.OpnameSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.ListByWarehouse(ctx, warehouseID, limit, offset)
}

// lockCounting bloquea la sesión y exige estado counting.
func lockCounting(ctx context.Context, repos inventory.TxRepos, sessionID string) (*entity.OpnameSession, error) {
	s, err := repos.Opname.GetForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || s.IsDeleted() {
		return nil, fmt.Errorf("sesión %s: %w", sessionID, domain.ErrNotFound)
	}
	if s.Status == entity.OpnameStatusFinalized {
		return nil, domain.ErrAlreadyFinalized
	}
	return s, nil
}

func varianceAdjustment(s *entity.OpnameSession, productID string, diff int64) inventory.AdjustInput {
	in := inventory.AdjustInput{
		ProductID:   productID,
		WarehouseID: s.WarehouseID,
		Mode:        domaininv.AdjustModeAdd,
		Quantity:    diff,
		Reason:      domaininv.ReasonNormal,
		Notes:       "conteo físico " + s.Number,
	}
	if diff < 0 {
		in.Mode = domaininv.AdjustModeSubtract
		in.Quantity = -diff
	}
	return in
}

func sessionRef(s *entity.OpnameSession) entity.Reference {
	return entity.Reference{Type: entity.ReferenceTypeOpname, ID: s.ID, Number: s.Number}
}
