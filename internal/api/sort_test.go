package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func tickers(h []Holding) []string {
	out := make([]string, len(h))
	for i, x := range h {
		out[i] = x.Ticker
	}
	return out
}

func sample() []Holding {
	return []Holding{
		{ID: 1, Ticker: "msft", StockName: "Microsoft", Quantity: decimal.NewFromInt(5), CurrentPrice: nd("410.10"), DayChangePercent: nd("1.2")},
		{ID: 2, Ticker: "AAPL", StockName: "apple", Quantity: decimal.NewFromInt(10), CurrentPrice: nd("189.25"), DayChangePercent: nd("-0.5")},
		{ID: 3, Ticker: "XYZ", Quantity: decimal.NewFromInt(5)},
	}
}

func TestSortHoldings(t *testing.T) {
	tests := []struct {
		field, dir string
		want       []string
	}{
		{SortSymbol, "asc", []string{"AAPL", "msft", "XYZ"}},
		{SortSymbol, "desc", []string{"XYZ", "msft", "AAPL"}},
		{SortCompany, "asc", []string{"XYZ", "AAPL", "msft"}},
		{SortPrice, "asc", []string{"XYZ", "AAPL", "msft"}},
		{SortPrice, "desc", []string{"msft", "AAPL", "XYZ"}},
		{SortDayChangePercent, "asc", []string{"AAPL", "XYZ", "msft"}},
		// equal quantities keep their input order in both directions
		{SortQuantity, "asc", []string{"msft", "XYZ", "AAPL"}},
		{SortQuantity, "desc", []string{"AAPL", "msft", "XYZ"}},
		{"nonsense", "asc", []string{"msft", "AAPL", "XYZ"}},
		{"", "", []string{"msft", "AAPL", "XYZ"}},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, tickers(SortHoldings(sample(), tt.field, tt.dir)))
		})
	}
}

func TestSortHoldings_DoesNotModifyInput(t *testing.T) {
	in := sample()
	_ = SortHoldings(in, SortSymbol, "asc")
	assert.Equal(t, []string{"msft", "AAPL", "XYZ"}, tickers(in))
}
