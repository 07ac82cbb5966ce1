package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// TransferRequest body para POST /api/inventory/transfers.
type TransferRequest struct {
	ProductID       string `json:"product_id"`
	FromWarehouseID string `json:"from_warehouse_id"`
	ToWarehouseID   string `json:"to_warehouse_id"`
	Quantity        int64  `json:"quantity"`
	Notes           string `json:"notes"`
}

// AdjustRequest body para POST /api/inventory/adjustments.
// mode: add | subtract | set. reason: normal | damaged | expired | lost | correction.
type AdjustRequest struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Mode        string `json:"mode"`
	Quantity    int64  `json:"quantity"`
	Reason      string `json:"reason,omitempty"`
	Notes       string `json:"notes"`
}

// BatchAdjustRequest body para POST /api/inventory/adjustments/batch; todo o nada.
type BatchAdjustRequest struct {
	Items []AdjustRequest `json:"items"`
}

// ReceiptRequest body para POST /api/inventory/receipts (entrada por compra).
type ReceiptRequest struct {
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id,omitempty"`
	Quantity        int64           `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes"`
}

// StockLineRequest línea de pedido, venta o devolución.
type StockLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// ToStockLines convierte las líneas del request.
func ToStockLines(items []StockLineRequest) []entity.StockLine {
	out := make([]entity.StockLine, 0, len(items))
	for _, it := range items {
		out = append(out, entity.StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// StockResponse cantidad actual de un producto en una bodega.
type StockResponse struct {
	ProductID   string    `json:"product_id"`
	WarehouseID string    `json:"warehouse_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// FromStock proyecta una fila de stock.
func FromStock(s *entity.Stock) StockResponse {
	return StockResponse{ProductID: s.ProductID, WarehouseID: s.WarehouseID, Quantity: s.Quantity, UpdatedAt: s.UpdatedAt}
}

// MovementResponse entrada del libro de movimientos.
type MovementResponse struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id"`
	MovementType    string          `json:"movement_type"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	ReferenceNumber string          `json:"reference_number"`
	QuantityBefore  int64           `json:"quantity_before"`
	QuantityChange  int64           `json:"quantity_change"`
	QuantityAfter   int64           `json:"quantity_after"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Notes           string          `json:"notes"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// FromMovements proyecta entradas del libro.
func FromMovements(list []*entity.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, MovementResponse{
			ID:              m.ID,
			ProductID:       m.ProductID,
			WarehouseID:     m.WarehouseID,
			MovementType:    m.MovementType,
			ReferenceType:   m.ReferenceType,
			ReferenceID:     m.ReferenceID,
			ReferenceNumber: m.ReferenceNumber,
			QuantityBefore:  m.QuantityBefore,
			QuantityChange:  m.QuantityChange,
			QuantityAfter:   m.QuantityAfter,
			UnitCost:        m.UnitCost,
			Notes:           m.Notes,
			CreatedBy:       m.CreatedBy,
			CreatedAt:       m.CreatedAt,
		})
	}
	return out
}

// MovementListResponse historial paginado.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// OperationResponse resultado de una operación del motor: referencia y movimientos escritos.
type OperationResponse struct {
	ReferenceType   string             `json:"reference_type"`
	ReferenceID     string             `json:"reference_id,omitempty"`
	ReferenceNumber string             `json:"reference_number"`
	Movements       []MovementResponse `json:"movements"`
}

// FromOperation proyecta la referencia y los movimientos de una operación.
func FromOperation(ref entity.Reference, movements []*entity.StockMovement) OperationResponse {
	return OperationResponse{
		ReferenceType:   ref.Type,
		ReferenceID:     ref.ID,
		ReferenceNumber: ref.Number,
		Movements:       FromMovements(movements),
	}
}

// InsufficientStockDetail detalle de 409 INSUFFICIENT_STOCK.
type InsufficientStockDetail struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id,omitempty"`
	Available   int64  `json:"available"`
	Required    int64  `json:"required"`
}
