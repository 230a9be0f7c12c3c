// Package portfolio holds the portfolio model shared by the chat engine and
// the backend, and the single validation path both entry routes go through.
package portfolio

import (
	"errors"
	"fmt"
	"strings"
)

type Ticker struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

type Portfolio struct {
	Name    string   `json:"name"`
	Tickers []Ticker `json:"tickers"`
}

// Record is a portfolio accepted and stored by the backend.
type Record struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Tickers   []Ticker `json:"tickers"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

func (r Record) Portfolio() Portfolio {
	return Portfolio{Name: r.Name, Tickers: append([]Ticker{}, r.Tickers...)}
}

var (
	ErrNameRequired      = errors.New("portfolio name is required")
	ErrSymbolRequired    = errors.New("portfolio needs at least one ticker with a symbol")
	ErrWeightInvalid     = errors.New("ticker weights must be greater than zero")
	ErrWeightSumAbnormal = errors.New("ticker weights do not add up to a usable total")
)

// ValidationError carries the failing check plus enough context to render it.
type ValidationError struct {
	Err    error
	Symbol string
	Sum    float64
}

func (e *ValidationError) Error() string {
	switch {
	case e.Symbol != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Symbol)
	case errors.Is(e.Err, ErrWeightSumAbnormal):
		return fmt.Sprintf("%s (total %.4f)", e.Err, e.Sum)
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Summary renders the portfolio as a single line of weighted holdings.
func (p Portfolio) Summary() string {
	parts := make([]string, 0, len(p.Tickers))
	for _, ticker := range p.Tickers {
		parts = append(parts, fmt.Sprintf("%s %.2f%%", ticker.Symbol, ticker.Weight*100))
	}
	return fmt.Sprintf("%s: %s", p.Name, strings.Join(parts, ", "))
}

func (p Portfolio) Clone() Portfolio {
	return Portfolio{Name: p.Name, Tickers: append([]Ticker{}, p.Tickers...)}
}
