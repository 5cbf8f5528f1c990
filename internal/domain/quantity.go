package domain

import "github.com/shopspring/decimal"

// Cantidades y costos se guardan en NUMERIC(14,4).
const (
	QuantityScale     = 4
	QuantityIntDigits = 10
)

var quantityLimit = decimal.New(1, QuantityIntDigits)

// ScaleError motivo por el que q no cabe en NUMERIC(14,4); vacío si cabe.
func ScaleError(q decimal.Decimal) string {
	if !q.Equal(q.Truncate(QuantityScale)) {
		return "máximo 4 decimales"
	}
	if q.Abs().GreaterThanOrEqual(quantityLimit) {
		return "máximo 10 dígitos enteros"
	}
	return ""
}
