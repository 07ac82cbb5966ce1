package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StartOpnameRequest body para POST /api/opname.
type StartOpnameRequest struct {
	WarehouseID string `json:"warehouse_id,omitempty"`
	Notes       string `json:"notes"`
}

// RecordCountRequest body para PUT /api/opname/:id/lines/:line_id.
type RecordCountRequest struct {
	PhysicalQty int64 `json:"physical_qty"`
}

// OpnameLineResponse línea de conteo.
type OpnameLineResponse struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	SystemQty   int64      `json:"system_qty"`
	PhysicalQty *int64     `json:"physical_qty"`
	Difference  *int64     `json:"difference"`
	CountedAt   *time.Time `json:"counted_at,omitempty"`
}

// OpnameSessionResponse sesión de conteo; Lines vacío en listados.
type OpnameSessionResponse struct {
	ID          string               `json:"id"`
	Number      string               `json:"number"`
	WarehouseID string               `json:"warehouse_id"`
	Status      string               `json:"status"`
	Notes       string               `json:"notes"`
	CreatedBy   string               `json:"created_by,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	FinalizedAt *time.Time           `json:"finalized_at,omitempty"`
	Lines       []OpnameLineResponse `json:"lines,omitempty"`
}

// FromOpnameLine proyecta una línea.
func FromOpnameLine(l *entity.OpnameLine) OpnameLineResponse {
	return OpnameLineResponse{
		ID:          l.ID,
		ProductID:   l.ProductID,
		SystemQty:   l.SystemQty,
		PhysicalQty: l.PhysicalQty,
		Difference:  l.Difference,
		CountedAt:   l.CountedAt,
	}
}

// FromOpnameSession proyecta la sesión con sus líneas.
func FromOpnameSession(s *entity.OpnameSession) OpnameSessionResponse {
	out := OpnameSessionResponse{
		ID:          s.ID,
		Number:      s.Number,
		WarehouseID: s.WarehouseID,
		Status:      s.Status,
		Notes:       s.Notes,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		FinalizedAt: s.FinalizedAt,
	}
	for i := range s.Lines {
		out.Lines = append(out.Lines, FromOpnameLine(&s.Lines[i]))
	}
	return out
}

// OpnameListResponse listado paginado de sesiones.
type OpnameListResponse struct {
	Items []OpnameSessionResponse `json:"items"`
	Page  PageResponse            `json:"page"`
}
