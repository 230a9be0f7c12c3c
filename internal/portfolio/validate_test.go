package portfolio

import (
	"errors"
	"testing"
)

func TestValidateStored(t *testing.T) {
	total, err := ValidateStored(Portfolio{Name: "Tech", Tickers: []Ticker{
		{Symbol: "AAPL", Weight: 0.4},
		{Symbol: "MSFT", Weight: 0.3},
		{Symbol: "GOOGL", Weight: 0.2},
		{Symbol: "AMZN", Weight: 0.1},
	}})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if total.String() != "1" {
		t.Fatalf("expected exact total 1, got %s", total)
	}
}

func TestValidateStored_Tolerance(t *testing.T) {
	if _, err := ValidateStored(Portfolio{Name: "p", Tickers: []Ticker{{Symbol: "A", Weight: 0.5}, {Symbol: "B", Weight: 0.51}}}); err != nil {
		t.Fatalf("1.01 should be accepted, got %v", err)
	}
	total, err := ValidateStored(Portfolio{Name: "p", Tickers: []Ticker{{Symbol: "A", Weight: 0.5}, {Symbol: "B", Weight: 0.52}}})
	if !errors.Is(err, ErrWeightSumAbnormal) {
		t.Fatalf("expected ErrWeightSumAbnormal, got %v", err)
	}
	if total.String() != "1.02" {
		t.Fatalf("expected total 1.02, got %s", total)
	}
}

func TestValidateStored_RequiresNameAndSymbols(t *testing.T) {
	if _, err := ValidateStored(Portfolio{Tickers: []Ticker{{Symbol: "A", Weight: 1}}}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := ValidateStored(Portfolio{Name: "p"}); !errors.Is(err, ErrSymbolRequired) {
		t.Fatalf("expected ErrSymbolRequired, got %v", err)
	}
}

func TestPortfolioSummary(t *testing.T) {
	p := Portfolio{Name: "Tech", Tickers: []Ticker{{Symbol: "AAPL", Weight: 0.4}, {Symbol: "MSFT", Weight: 0.6}}}
	if got := p.Summary(); got != "Tech: AAPL 40.00%, MSFT 60.00%" {
		t.Fatalf("unexpected summary %q", got)
	}
}
