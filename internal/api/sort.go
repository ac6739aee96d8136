package api

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Sort fields accepted by SortHoldings.
const (
	SortSymbol           = "symbol"
	SortCompany          = "company"
	SortQuantity         = "quantity"
	SortPrice            = "price"
	SortValue            = "value"
	SortDayChangePercent = "dayChangePercent"
	SortDayChangeDollar  = "dayChangeDollar"
)

// SortHoldings returns the holdings ordered by field, ascending unless dir
// is "desc". Missing market data sorts as zero. An unknown field returns the
// holdings in their original order. The input is not modified.
func SortHoldings(h []Holding, field, dir string) []Holding {
	cmp := holdingComparator(field)
	out := slices.Clone(h)
	if cmp == nil {
		return out
	}
	if strings.EqualFold(dir, "desc") {
		asc := cmp
		cmp = func(a, b Holding) int { return -asc(a, b) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func holdingComparator(field string) func(a, b Holding) int {
	switch field {
	case SortSymbol:
		return func(a, b Holding) int { return compareFold(a.Ticker, b.Ticker) }
	case SortCompany:
		return func(a, b Holding) int { return compareFold(a.StockName, b.StockName) }
	case SortQuantity:
		return func(a, b Holding) int { return a.Quantity.Cmp(b.Quantity) }
	case SortPrice:
		return byDecimal(func(h Holding) decimal.NullDecimal { return h.CurrentPrice })
	case SortValue:
		return byDecimal(func(h Holding) decimal.NullDecimal { return h.CurrentValue })
	case SortDayChangePercent:
		return byDecimal(func(h Holding) decimal.NullDecimal { return h.DayChangePercent })
	case SortDayChangeDollar:
		return byDecimal(func(h Holding) decimal.NullDecimal { return h.TotalDayChange })
	default:
		return nil
	}
}

func byDecimal(get func(Holding) decimal.NullDecimal) func(a, b Holding) int {
	return func(a, b Holding) int {
		return orZero(get(a)).Cmp(orZero(get(b)))
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
