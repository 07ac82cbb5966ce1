package entity

import "time"

// Estados de una sesión de conteo físico (opname).
const (
	OpnameStatusCounting  = "counting"
	OpnameStatusFinalized = "finalized"
)

// OpnameSession sesión de conteo físico de una bodega.
// Solo es mutable en estado counting; DeletedAt marca el borrado lógico.
type OpnameSession struct {
	ID          string
	Number      string
	WarehouseID string
	Status      string
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
	FinalizedAt *time.Time
	DeletedAt   *time.Time
	Lines       []OpnameLine
}

// OpnameLine cantidad del sistema (snapshot) frente a la cantidad contada.
type OpnameLine struct {
	ID          string
	SessionID   string
	ProductID   string
	SystemQty   int64
	PhysicalQty *int64
	Difference  *int64
	CountedAt   *time.Time
}

// IsDeleted indica si la sesión fue borrada lógicamente.
func (s *OpnameSession) IsDeleted() bool {
	return s.DeletedAt != nil
}

// SetPhysical registra la cantidad contada y recalcula la diferencia.
func (l *OpnameLine) SetPhysical(qty int64, at time.Time) {
	diff := qty - l.SystemQty
	l.PhysicalQty = &qty
	l.Difference = &diff
	l.CountedAt = &at
}

// Counted indica si la línea ya tiene cantidad física.
func (l *OpnameLine) Counted() bool {
	return l.PhysicalQty != nil
}
