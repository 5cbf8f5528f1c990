package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SiteMaterial material entregado en obra, acumulado por producto.
type SiteMaterial struct {
	SiteID            int64
	ProductID         int64
	Unit              string
	QuantityDelivered decimal.Decimal
	LastDdtID         *int64
	UpdatedAt         time.Time
}
