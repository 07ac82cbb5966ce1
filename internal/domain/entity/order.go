package entity

import "time"

// Estados de un pedido. El stock se reserva al crear, no al completar.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order pedido que reserva stock mientras está pendiente.
type Order struct {
	ID          string
	Number      string
	WarehouseID string
	Status      string
	Items       []StockLine
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}
