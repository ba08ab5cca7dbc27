package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestCalcTwoLines(t *testing.T) {
	items := []models.CartItem{
		{ProductID: 1, Price: "19.99", Qty: 2},
		{ProductID: 2, Price: "5.00", Qty: 1},
	}

	p, err := Calc(items)
	require.NoError(t, err)
	require.Equal(t, "44.98", p.ItemsPrice)
	require.Equal(t, "4.50", p.TaxPrice)
	require.Equal(t, "10.00", p.ShippingPrice)
	require.Equal(t, "59.48", p.TotalPrice)
}

func TestCalcTotalIsExactSum(t *testing.T) {
	cases := [][]models.CartItem{
		{{ProductID: 1, Price: "0.01", Qty: 1}},
		{{ProductID: 1, Price: "7.77", Qty: 3}, {ProductID: 2, Price: "0.10", Qty: 7}},
		{{ProductID: 1, Price: "129.95", Qty: 1}, {ProductID: 2, Price: "3.33", Qty: 9}},
		{{ProductID: 1, Price: "0.05", Qty: 13}},
	}

	for _, items := range cases {
		p, err := Calc(items)
		require.NoError(t, err)

		items_ := decimal.RequireFromString(p.ItemsPrice)
		tax := decimal.RequireFromString(p.TaxPrice)
		ship := decimal.RequireFromString(p.ShippingPrice)
		total := decimal.RequireFromString(p.TotalPrice)
		require.True(t, items_.Add(tax).Add(ship).Equal(total),
			"items %s + tax %s + shipping %s != total %s", p.ItemsPrice, p.TaxPrice, p.ShippingPrice, p.TotalPrice)
	}
}

func TestCalcEmptyCart(t *testing.T) {
	_, err := Calc(nil)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCalcRejectsBadLines(t *testing.T) {
	_, err := Calc([]models.CartItem{{ProductID: 1, Price: "9.99", Qty: 0}})
	require.ErrorIs(t, err, ErrNegativeQty)

	_, err = Calc([]models.CartItem{{ProductID: 1, Price: "-9.99", Qty: 1}})
	require.Error(t, err)

	_, err = Calc([]models.CartItem{{ProductID: 1, Price: "not a number", Qty: 1}})
	require.Error(t, err)
}

func TestValidAmount(t *testing.T) {
	require.True(t, ValidAmount("19.99"))
	require.True(t, ValidAmount("0"))
	require.True(t, ValidAmount("10.5"))
	require.False(t, ValidAmount("-1.00"))
	require.False(t, ValidAmount("1.999"))
	require.False(t, ValidAmount("abc"))
}
