package portfolio

import (
	"strings"

	"github.com/shopspring/decimal"
)

var storedTolerance = decimal.RequireFromString("0.01")

// TotalWeight sums ticker weights without float drift.
func TotalWeight(tickers []Ticker) decimal.Decimal {
	total := decimal.Zero
	for _, ticker := range tickers {
		total = total.Add(decimal.NewFromFloat(ticker.Weight))
	}
	return total
}

// ValidateStored is the check a backend applies before accepting a portfolio:
// a name, at least one symbol, and fractional weights summing to 1 within 0.01.
// It does not rescale.
func ValidateStored(p Portfolio) (decimal.Decimal, error) {
	if strings.TrimSpace(p.Name) == "" {
		return decimal.Zero, &ValidationError{Err: ErrNameRequired}
	}
	if len(p.Tickers) == 0 {
		return decimal.Zero, &ValidationError{Err: ErrSymbolRequired}
	}
	for _, ticker := range p.Tickers {
		if strings.TrimSpace(ticker.Symbol) == "" {
			return decimal.Zero, &ValidationError{Err: ErrSymbolRequired}
		}
	}
	total := TotalWeight(p.Tickers)
	if total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(storedTolerance) {
		return total, &ValidationError{Err: ErrWeightSumAbnormal, Sum: total.InexactFloat64()}
	}
	return total, nil
}
