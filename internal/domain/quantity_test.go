package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/ddt-ledger/internal/domain"
)

func TestScaleError(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", ""},
		{"0.0001", ""},
		{"-12.5", ""},
		{"1.50000", ""}, // ceros finales no cuentan
		{"9999999999.9999", ""},
		{"0.00001", "máximo 4 decimales"},
		{"-3.14159", "máximo 4 decimales"},
		{"10000000000", "máximo 10 dígitos enteros"},
		{"-10000000000", "máximo 10 dígitos enteros"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, domain.ScaleError(decimal.RequireFromString(c.in)), c.in)
	}
}
