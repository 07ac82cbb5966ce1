package entity

import "time"

// Estados de una venta POS.
const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

// Sale transacción de punto de venta; descuenta stock inmediatamente al crearse.
type Sale struct {
	ID          string
	Number      string
	WarehouseID string
	Status      string
	Items       []StockLine
	VoidReason  string
	CreatedBy   string
	CreatedAt   time.Time
	VoidedAt    *time.Time
}

// SaleReturn devolución parcial o total de una venta.
type SaleReturn struct {
	ID        string
	SaleID    string
	Number    string
	Items     []StockLine
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}
