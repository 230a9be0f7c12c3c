package portfolio

import (
	"math"
	"strings"
)

const (
	DefaultManualName = "My Portfolio"
	// ManualSumTolerance is the allowed drift from 100 on the percent scale.
	ManualSumTolerance = 0.5
)

// ManualForm is the in-progress state of a hand-built portfolio. Weights are
// percentages in [0, 100] with two decimals.
type ManualForm struct {
	Name string   `json:"name"`
	Rows []Ticker `json:"rows"`
}

func NewManualForm() ManualForm {
	return ManualForm{Name: DefaultManualName, Rows: []Ticker{{Weight: 100}}}
}

// AddRow appends an empty row and spreads weight evenly across all rows.
func (f *ManualForm) AddRow(symbol string) {
	f.Rows = append(f.Rows, Ticker{Symbol: strings.TrimSpace(symbol)})
	f.equalize()
}

// RemoveRow drops the row at index and re-spreads weight. The last row stays.
func (f *ManualForm) RemoveRow(index int) {
	if len(f.Rows) <= 1 || index < 0 || index >= len(f.Rows) {
		return
	}
	f.Rows = append(f.Rows[:index], f.Rows[index+1:]...)
	f.equalize()
}

func (f *ManualForm) SetSymbol(index int, symbol string) {
	if index < 0 || index >= len(f.Rows) {
		return
	}
	f.Rows[index].Symbol = symbol
}

// SetWeight clamps weight into [0, 100] and rounds to two decimals.
func (f *ManualForm) SetWeight(index int, weight float64) {
	if index < 0 || index >= len(f.Rows) {
		return
	}
	if math.IsNaN(weight) {
		weight = 0
	}
	f.Rows[index].Weight = round2(math.Max(0, math.Min(100, weight)))
}

func (f ManualForm) Total() float64 {
	total := 0.0
	for _, row := range f.Rows {
		total += row.Weight
	}
	return total
}

// Build checks the form and hands back its portfolio on the percent scale,
// ready for Normalize with the Manual options.
func (f ManualForm) Build() (Portfolio, error) {
	if strings.TrimSpace(f.Name) == "" {
		return Portfolio{}, &ValidationError{Err: ErrNameRequired}
	}
	if len(f.Rows) == 0 {
		return Portfolio{}, &ValidationError{Err: ErrSymbolRequired}
	}
	for _, row := range f.Rows {
		if strings.TrimSpace(row.Symbol) == "" {
			return Portfolio{}, &ValidationError{Err: ErrSymbolRequired}
		}
	}
	for _, row := range f.Rows {
		if row.Weight <= 0 || math.IsNaN(row.Weight) {
			return Portfolio{}, &ValidationError{Err: ErrWeightInvalid, Symbol: strings.ToUpper(strings.TrimSpace(row.Symbol))}
		}
	}
	total := f.Total()
	if math.Abs(total-100) > ManualSumTolerance {
		return Portfolio{}, &ValidationError{Err: ErrWeightSumAbnormal, Sum: total}
	}
	return Portfolio{Name: f.Name, Tickers: append([]Ticker{}, f.Rows...)}, nil
}

func (f *ManualForm) equalize() {
	if len(f.Rows) == 0 {
		return
	}
	weight := round2(100 / float64(len(f.Rows)))
	for i := range f.Rows {
		f.Rows[i].Weight = weight
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
