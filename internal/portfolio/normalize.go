package portfolio

import (
	"math"
	"strings"
)

const (
	// FractionTolerance is how far from 1 a weight sum may drift and still be
	// taken as already fractional.
	FractionTolerance = 0.01
	// PercentTolerance is how far from 100 a weight sum may drift and still be
	// read as percentages.
	PercentTolerance = 1.0
)

type Options struct {
	Tolerance       float64
	RequirePositive bool
}

var (
	// Extracted applies to portfolios parsed out of a model reply.
	Extracted = Options{Tolerance: FractionTolerance}
	// Manual applies to portfolios built in the manual entry form.
	Manual = Options{Tolerance: FractionTolerance, RequirePositive: true}
)

// Normalize validates p and rescales its weights so they sum to 1. It never
// mutates p.
func Normalize(p Portfolio, opts Options) (Portfolio, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return Portfolio{}, &ValidationError{Err: ErrNameRequired}
	}
	if len(p.Tickers) == 0 {
		return Portfolio{}, &ValidationError{Err: ErrSymbolRequired}
	}
	tolerance := opts.Tolerance
	if tolerance <= 0 {
		tolerance = FractionTolerance
	}

	sum := 0.0
	for _, ticker := range p.Tickers {
		if strings.TrimSpace(ticker.Symbol) == "" {
			return Portfolio{}, &ValidationError{Err: ErrSymbolRequired}
		}
		invalid := ticker.Weight < 0 || math.IsNaN(ticker.Weight) || math.IsInf(ticker.Weight, 0)
		if invalid || (opts.RequirePositive && ticker.Weight == 0) {
			return Portfolio{}, &ValidationError{Err: ErrWeightInvalid, Symbol: strings.ToUpper(strings.TrimSpace(ticker.Symbol))}
		}
		sum += ticker.Weight
	}

	divisor := 1.0
	switch {
	case math.Abs(sum-1) <= tolerance:
	case math.Abs(sum-100) <= PercentTolerance:
		divisor = 100
	case sum > 0:
		divisor = sum
	default:
		return Portfolio{}, &ValidationError{Err: ErrWeightSumAbnormal, Sum: sum}
	}

	out := Portfolio{Name: name, Tickers: make([]Ticker, 0, len(p.Tickers))}
	for _, ticker := range p.Tickers {
		out.Tickers = append(out.Tickers, Ticker{
			Symbol: strings.ToUpper(strings.TrimSpace(ticker.Symbol)),
			Weight: ticker.Weight / divisor,
		})
	}
	return out, nil
}
