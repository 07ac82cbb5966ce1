package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento (value object conceptual).
const (
	MovementTypeIn         = "in"
	MovementTypeOut        = "out"
	MovementTypeAdjustment = "adjustment"
)

// Tipos de referencia: flujo que originó el movimiento.
const (
	ReferenceTypeSale       = "sale"
	ReferenceTypePurchase   = "purchase"
	ReferenceTypeAdjustment = "adjustment"
	ReferenceTypeTransfer   = "transfer"
	ReferenceTypeReturn     = "return"
	ReferenceTypeOpname     = "opname"
)

// Reference correlaciona los movimientos de una misma operación lógica.
type Reference struct {
	Type   string
	ID     string
	Number string
}

// StockMovement registro inmutable de un cambio de cantidad.
// Invariante: QuantityAfter = QuantityBefore + QuantityChange.
type StockMovement struct {
	ID              string
	ProductID       string
	WarehouseID     string
	MovementType    string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	QuantityBefore  int64
	QuantityChange  int64
	QuantityAfter   int64
	UnitCost        decimal.Decimal
	Notes           string
	CreatedBy       string
	CreatedAt       time.Time
}

// MovementFilter filtros del historial de movimientos (read model).
type MovementFilter struct {
	ProductID       string
	WarehouseID     string
	ReferenceType   string
	ReferenceNumber string
	From            *time.Time
	To              *time.Time
	Limit           int
	Offset          int
}
