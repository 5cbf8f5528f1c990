package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost costo promedio ponderado tras una entrada.
// nuevo = ((existencia * costoActual) + (cantEntrada * costoEntrada)) / (existencia + cantEntrada)
func WeightedAverageCost(onHand, currentCost, incoming, incomingCost decimal.Decimal) decimal.Decimal {
	if onHand.IsNegative() {
		onHand = decimal.Zero
	}
	total := onHand.Add(incoming)
	if total.LessThanOrEqual(decimal.Zero) {
		return currentCost
	}
	return onHand.Mul(currentCost).Add(incoming.Mul(incomingCost)).Div(total)
}
