package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CreateOrderRequest body para POST /api/orders.
type CreateOrderRequest struct {
	WarehouseID string             `json:"warehouse_id,omitempty"`
	Items       []StockLineRequest `json:"items"`
}

// UpdateOrderItemsRequest body para PUT /api/orders/:id/items.
type UpdateOrderItemsRequest struct {
	Items []StockLineRequest `json:"items"`
}

// OrderResponse pedido con sus líneas.
type OrderResponse struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	WarehouseID string             `json:"warehouse_id"`
	Status      string             `json:"status"`
	Items       []entity.StockLine `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	CancelledAt *time.Time         `json:"cancelled_at,omitempty"`
}

// FromOrder proyecta un pedido.
func FromOrder(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		Number:      o.Number,
		WarehouseID: o.WarehouseID,
		Status:      o.Status,
		Items:       o.Items,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
	}
}

// CreateSaleRequest body para POST /api/sales.
type CreateSaleRequest struct {
	WarehouseID string             `json:"warehouse_id,omitempty"`
	Items       []StockLineRequest `json:"items"`
}

// VoidSaleRequest body para POST /api/sales/:id/void.
type VoidSaleRequest struct {
	Reason string `json:"reason"`
}

// ReturnRequest body para POST /api/sales/:id/returns.
type ReturnRequest struct {
	Items  []StockLineRequest `json:"items"`
	Reason string             `json:"reason"`
}

// SaleResponse venta POS.
type SaleResponse struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	WarehouseID string             `json:"warehouse_id"`
	Status      string             `json:"status"`
	Items       []entity.StockLine `json:"items"`
	VoidReason  string             `json:"void_reason,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	VoidedAt    *time.Time         `json:"voided_at,omitempty"`
}

// FromSale proyecta una venta.
func FromSale(s *entity.Sale) SaleResponse {
	return SaleResponse{
		ID:          s.ID,
		Number:      s.Number,
		WarehouseID: s.WarehouseID,
		Status:      s.Status,
		Items:       s.Items,
		VoidReason:  s.VoidReason,
		CreatedAt:   s.CreatedAt,
		VoidedAt:    s.VoidedAt,
	}
}

// ReturnResponse devolución registrada.
type ReturnResponse struct {
	ID        string             `json:"id"`
	SaleID    string             `json:"sale_id"`
	Number    string             `json:"number"`
	Items     []entity.StockLine `json:"items"`
	Reason    string             `json:"reason"`
	CreatedAt time.Time          `json:"created_at"`
}

// FromReturn proyecta una devolución.
func FromReturn(r *entity.SaleReturn) ReturnResponse {
	return ReturnResponse{ID: r.ID, SaleID: r.SaleID, Number: r.Number, Items: r.Items, Reason: r.Reason, CreatedAt: r.CreatedAt}
}
