package portfolio

import (
	"errors"
	"math"
	"testing"
)

func TestManualForm_AddRowEqualizes(t *testing.T) {
	form := NewManualForm()
	form.SetSymbol(0, "AAPL")
	form.AddRow("MSFT")
	form.AddRow("")

	if len(form.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(form.Rows))
	}
	for i, row := range form.Rows {
		if row.Weight != 33.33 {
			t.Fatalf("row %d weight = %v, want 33.33", i, row.Weight)
		}
	}
	if form.Rows[1].Symbol != "MSFT" {
		t.Fatalf("expected MSFT in row 1, got %q", form.Rows[1].Symbol)
	}
}

func TestManualForm_RemoveRowKeepsLast(t *testing.T) {
	form := NewManualForm()
	form.RemoveRow(0)
	if len(form.Rows) != 1 {
		t.Fatalf("last row should stay, got %d rows", len(form.Rows))
	}

	form.AddRow("B")
	form.AddRow("C")
	form.RemoveRow(1)
	if len(form.Rows) != 2 || form.Rows[1].Symbol != "C" {
		t.Fatalf("unexpected rows: %+v", form.Rows)
	}
	if form.Rows[0].Weight != 50 || form.Rows[1].Weight != 50 {
		t.Fatalf("expected 50/50 after removal, got %+v", form.Rows)
	}
}

func TestManualForm_SetWeightClamps(t *testing.T) {
	form := NewManualForm()
	form.SetWeight(0, 140)
	if form.Rows[0].Weight != 100 {
		t.Fatalf("expected clamp to 100, got %v", form.Rows[0].Weight)
	}
	form.SetWeight(0, -3)
	if form.Rows[0].Weight != 0 {
		t.Fatalf("expected clamp to 0, got %v", form.Rows[0].Weight)
	}
	form.SetWeight(0, 12.3456)
	if form.Rows[0].Weight != 12.35 {
		t.Fatalf("expected rounding to 12.35, got %v", form.Rows[0].Weight)
	}
	form.SetWeight(5, 10)
}

func TestManualForm_BuildAndNormalize(t *testing.T) {
	form := ManualForm{Name: "Tech", Rows: []Ticker{
		{Symbol: "aapl", Weight: 40},
		{Symbol: "msft", Weight: 30},
		{Symbol: "googl", Weight: 20},
		{Symbol: "amzn", Weight: 10},
	}}
	built, err := form.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	out, err := Normalize(built, Manual)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []float64{0.4, 0.3, 0.2, 0.1}
	for i, ticker := range out.Tickers {
		if math.Abs(ticker.Weight-want[i]) > 1e-9 {
			t.Fatalf("weight[%d] = %v, want %v", i, ticker.Weight, want[i])
		}
	}
}

func TestManualForm_BuildRejectsOffTotal(t *testing.T) {
	form := ManualForm{Name: "p", Rows: []Ticker{{Symbol: "A", Weight: 60}, {Symbol: "B", Weight: 39}}}
	_, err := form.Build()
	if !errors.Is(err, ErrWeightSumAbnormal) {
		t.Fatalf("expected ErrWeightSumAbnormal, got %v", err)
	}

	form.Rows[1].Weight = 39.6
	if _, err := form.Build(); err != nil {
		t.Fatalf("expected 99.6 to pass, got %v", err)
	}
}

func TestManualForm_BuildChecksOrder(t *testing.T) {
	form := ManualForm{Name: "", Rows: []Ticker{{Symbol: "", Weight: 10}}}
	if _, err := form.Build(); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected name error first, got %v", err)
	}
	form.Name = "x"
	if _, err := form.Build(); !errors.Is(err, ErrSymbolRequired) {
		t.Fatalf("expected symbol error, got %v", err)
	}

	form.Rows = []Ticker{{Symbol: "AAPL", Weight: 0}, {Symbol: "MSFT", Weight: 90}}
	_, err := form.Build()
	if !errors.Is(err, ErrWeightInvalid) {
		t.Fatalf("expected weight error before the sum check, got %v", err)
	}
	var validation *ValidationError
	if !errors.As(err, &validation) || validation.Symbol != "AAPL" {
		t.Fatalf("expected AAPL to be named, got %v", err)
	}

	form.Rows = []Ticker{{Symbol: "AAPL", Weight: 60}, {Symbol: "MSFT", Weight: 30}}
	if _, err := form.Build(); !errors.Is(err, ErrWeightSumAbnormal) {
		t.Fatalf("expected sum error, got %v", err)
	}
}
