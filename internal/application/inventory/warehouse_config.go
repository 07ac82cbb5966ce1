package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// WarehouseConfig bodegas singleton que usa el motor: la de venta/pedido por defecto y la de cuarentena.
// Se carga una vez al arrancar y se inyecta en el motor.
type WarehouseConfig struct {
	DefaultWarehouseID  string
	RejectedWarehouseID string // vacío: no hay bodega de cuarentena
}

// Validate exige una bodega por defecto.
func (c WarehouseConfig) Validate() error {
	if c.DefaultWarehouseID == "" {
		return fmt.Errorf("sin bodega por defecto: %w", domain.ErrMissingConfiguration)
	}
	if c.RejectedWarehouseID != "" && c.RejectedWarehouseID == c.DefaultWarehouseID {
		return fmt.Errorf("la bodega por defecto no puede ser de cuarentena: %w", domain.ErrInvalidConfiguration)
	}
	return nil
}

// HasRejected indica si hay bodega de cuarentena configurada.
func (c WarehouseConfig) HasRejected() bool {
	return c.RejectedWarehouseID != ""
}

// Resolve devuelve la bodega pedida o la bodega por defecto si viene vacía.
func (c WarehouseConfig) Resolve(warehouseID string) string {
	if warehouseID == "" {
		return c.DefaultWarehouseID
	}
	return warehouseID
}

// LoadWarehouseConfig lee las bodegas y valida: exactamente una por defecto, a lo sumo una de cuarentena.
func LoadWarehouseConfig(ctx context.Context, repo repository.WarehouseRepository) (WarehouseConfig, error) {
	list, err := repo.List(ctx)
	if err != nil {
		return WarehouseConfig{}, fmt.Errorf("listar bodegas: %w", err)
	}
	var cfg WarehouseConfig
	defaults, rejected := 0, 0
	for _, w := range list {
		if w.IsDefault {
			defaults++
			cfg.DefaultWarehouseID = w.ID
		}
		if w.Type == entity.WarehouseTypeRejected {
			rejected++
			cfg.RejectedWarehouseID = w.ID
		}
	}
	switch {
	case defaults == 0:
		return WarehouseConfig{}, fmt.Errorf("ninguna bodega marcada por defecto: %w", domain.ErrMissingConfiguration)
	case defaults > 1:
		return WarehouseConfig{}, fmt.Errorf("%d bodegas marcadas por defecto: %w", defaults, domain.ErrInvalidConfiguration)
	case rejected > 1:
		return WarehouseConfig{}, fmt.Errorf("%d bodegas de cuarentena: %w", rejected, domain.ErrInvalidConfiguration)
	}
	return cfg, cfg.Validate()
}
