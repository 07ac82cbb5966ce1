package entity

import "time"

// Tipos de bodega.
const (
	WarehouseTypeNormal   = "normal"
	WarehouseTypeRejected = "rejected" // cuarentena: recibe mercancía dañada o vencida
)

// Warehouse representa una bodega o sucursal donde se almacena inventario (multi-bodega).
type Warehouse struct {
	ID        string
	Name      string
	Type      string
	IsDefault bool // bodega de venta/pedido por defecto
	CreatedAt time.Time
	UpdatedAt time.Time
}
