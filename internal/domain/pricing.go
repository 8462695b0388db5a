package domain

import "github.com/shopspring/decimal"

// CartTotals captures the aggregated monetary results of pricing a cart.
// Total always equals Subtotal + Shipping - Discount + Tax.
type CartTotals struct {
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	ItemCount int
}
