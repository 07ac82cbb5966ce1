package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo unitario tras una recepción:
// (onHand*currentCost + received*receivedCost) / (onHand + received).
// Sin existencias resultantes devuelve cero.
func WeightedAverageCost(onHand int64, currentCost decimal.Decimal, received int64, receivedCost decimal.Decimal) decimal.Decimal {
	total := onHand + received
	if total <= 0 {
		return decimal.Zero
	}
	value := decimal.NewFromInt(onHand).Mul(currentCost).
		Add(decimal.NewFromInt(received).Mul(receivedCost))
	return value.Div(decimal.NewFromInt(total))
}
