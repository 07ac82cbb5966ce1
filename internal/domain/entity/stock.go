package entity

import "time"

// StockKey identifica una fila de stock (producto, bodega).
type StockKey struct {
	ProductID   string
	WarehouseID string
}

// Less ordena por ProductID y luego WarehouseID; es el orden en que se toman los bloqueos.
func (k StockKey) Less(o StockKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.WarehouseID < o.WarehouseID
}

// Stock representa la cantidad actual de un producto en una bodega.
// La ausencia de fila equivale a cantidad 0; la fila se crea en la primera escritura.
type Stock struct {
	ProductID   string
	WarehouseID string
	Quantity    int64
	UpdatedAt   time.Time
}

// Key devuelve la identidad de la fila.
func (s *Stock) Key() StockKey {
	return StockKey{ProductID: s.ProductID, WarehouseID: s.WarehouseID}
}

// StockLine línea solicitada por un flujo externo (venta, pedido, devolución).
type StockLine struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}
