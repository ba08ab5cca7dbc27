// Package pricing computes the derived price fields of a cart. All
// arithmetic runs on shopspring decimals and every result is rendered
// as a fixed-2-decimal string, so repeated recomputation never
// accumulates binary float drift.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

// TODO: shipping is a flat placeholder until carrier rates are wired in.
var (
	shippingFlat = decimal.RequireFromString("10.00")
	taxRate      = decimal.RequireFromString("0.10")
)

var (
	ErrEmptyCart   = errors.New("pricing: cart has no items")
	ErrNegativeQty = errors.New("pricing: negative or zero quantity")
)

type Prices struct {
	ItemsPrice    string
	ShippingPrice string
	TaxPrice      string
	TotalPrice    string
}

// Calc derives the four price fields from an ordered item list.
// Rounding is decimal.Round, half away from zero, which on the
// non-negative domain of prices is exactly round-half-up.
func Calc(items []models.CartItem) (Prices, error) {
	if len(items) == 0 {
		return Prices{}, ErrEmptyCart
	}

	itemsPrice := decimal.Zero
	for _, it := range items {
		if it.Qty == 0 {
			return Prices{}, ErrNegativeQty
		}
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return Prices{}, fmt.Errorf("pricing: bad price %q for product %d: %w", it.Price, it.ProductID, err)
		}
		if price.IsNegative() {
			return Prices{}, fmt.Errorf("pricing: negative price %q for product %d", it.Price, it.ProductID)
		}
		itemsPrice = itemsPrice.Add(price.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	itemsPrice = itemsPrice.Round(2)

	taxPrice := itemsPrice.Mul(taxRate).Round(2)
	totalPrice := itemsPrice.Add(taxPrice).Add(shippingFlat).Round(2)

	return Prices{
		ItemsPrice:    itemsPrice.StringFixed(2),
		ShippingPrice: shippingFlat.StringFixed(2),
		TaxPrice:      taxPrice.StringFixed(2),
		TotalPrice:    totalPrice.StringFixed(2),
	}, nil
}

// ValidAmount reports whether s parses as a non-negative decimal with
// at most two fractional digits, the only price format the store accepts.
func ValidAmount(s string) bool {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return !d.IsNegative() && d.Exponent() >= -2
}
