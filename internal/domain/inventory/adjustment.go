package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// AdjustMode modo de ajuste manual.
type AdjustMode string

const (
	AdjustModeAdd      AdjustMode = "add"
	AdjustModeSubtract AdjustMode = "subtract"
	AdjustModeSet      AdjustMode = "set"
)

// AdjustmentReason clasificación explícita del motivo de ajuste, decidida en el borde del sistema.
type AdjustmentReason string

const (
	ReasonNormal     AdjustmentReason = "normal"
	ReasonDamaged    AdjustmentReason = "damaged"
	ReasonExpired    AdjustmentReason = "expired"
	ReasonLost       AdjustmentReason = "lost"
	ReasonCorrection AdjustmentReason = "correction"
)

// ParseAdjustmentReason valida el motivo recibido; vacío equivale a normal.
func ParseAdjustmentReason(s string) (AdjustmentReason, error) {
	switch r := AdjustmentReason(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ReasonNormal, nil
	case ReasonNormal, ReasonDamaged, ReasonExpired, ReasonLost, ReasonCorrection:
		return r, nil
	}
	return "", fmt.Errorf("motivo de ajuste %q: %w", s, domain.ErrInvalidInput)
}

// IsDestructive indica si el stock retirado debe enviarse a la bodega de cuarentena.
func (r AdjustmentReason) IsDestructive() bool {
	return r == ReasonDamaged || r == ReasonExpired
}

// ParseAdjustMode valida el modo recibido.
func ParseAdjustMode(s string) (AdjustMode, error) {
	switch m := AdjustMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AdjustModeAdd, AdjustModeSubtract, AdjustModeSet:
		return m, nil
	}
	return "", fmt.Errorf("modo de ajuste %q: %w", s, domain.ErrInvalidInput)
}

// Validate revisa la cantidad según el modo: add/subtract > 0, set >= 0.
func (m AdjustMode) Validate(qty int64) error {
	switch m {
	case AdjustModeAdd, AdjustModeSubtract:
		if qty <= 0 {
			return fmt.Errorf("cantidad %d para %s: %w", qty, m, domain.ErrInvalidInput)
		}
	case AdjustModeSet:
		if qty < 0 {
			return fmt.Errorf("cantidad %d para set: %w", qty, domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("modo %q: %w", m, domain.ErrInvalidInput)
	}
	return nil
}

// Delta calcula el cambio neto a partir de la cantidad actual.
// subtract y set nunca dejan el stock en negativo: subtract se limita a la cantidad actual.
func (m AdjustMode) Delta(current, qty int64) int64 {
	switch m {
	case AdjustModeAdd:
		return qty
	case AdjustModeSubtract:
		return -min(qty, current)
	case AdjustModeSet:
		return qty - current
	}
	return 0
}

// Prefijos de número de referencia.
const (
	RefPrefixSale       = "SAL"
	RefPrefixOrder      = "ORD"
	RefPrefixReturn     = "RET"
	RefPrefixTransfer   = "TRF"
	RefPrefixAdjustment = "ADJ"
	RefPrefixPurchase   = "PUR"
	RefPrefixOpname     = "OPN"
)

// NewReferenceNumber genera un número legible PREFIJO-AAAAMMDD-XXXXXXXX.
func NewReferenceNumber(prefix string, now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), id)
}
