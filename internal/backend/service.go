// Package backend stores accepted portfolios. Service is the in-process
// implementation the API serves; Client talks to that API over HTTP.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

var ErrNotFound = store.ErrNotFound

// RejectedError is a submission the backend refused.
type RejectedError struct {
	Status      int
	Message     string
	TotalWeight *decimal.Decimal
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("portfolio rejected (%d): %s", e.Status, e.Message)
}

func (e *RejectedError) Detail() string {
	return e.Message
}

// Seeds are the demo portfolios a fresh backend starts with.
var Seeds = []portfolio.Record{
	{
		ID:   "port-1",
		Name: "Technology Leaders",
		Tickers: []portfolio.Ticker{
			{Symbol: "AAPL", Weight: 0.25},
			{Symbol: "MSFT", Weight: 0.25},
			{Symbol: "GOOGL", Weight: 0.2},
			{Symbol: "AMZN", Weight: 0.15},
			{Symbol: "META", Weight: 0.15},
		},
	},
	{
		ID:   "port-2",
		Name: "Steady Growth",
		Tickers: []portfolio.Ticker{
			{Symbol: "VTI", Weight: 0.4},
			{Symbol: "BND", Weight: 0.3},
			{Symbol: "VXUS", Weight: 0.2},
			{Symbol: "GLD", Weight: 0.1},
		},
	},
}

type Service struct {
	mu    sync.Mutex
	store store.PortfolioStore
	now   func() time.Time
}

func NewService(portfolios store.PortfolioStore) *Service {
	return &Service{store: portfolios, now: time.Now}
}

// Seed inserts Seeds when the store holds no portfolios yet.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.store.ListPortfolios(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	now := s.now().UTC()
	for i, seed := range Seeds {
		record := seed
		record.Tickers = append([]portfolio.Ticker{}, seed.Tickers...)
		record.CreatedAt = now.Add(time.Duration(i) * time.Millisecond).Format(time.RFC3339Nano)
		if err := s.store.CreatePortfolio(ctx, record); err != nil {
			return fmt.Errorf("seed %s: %w", record.ID, err)
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]portfolio.Record, error) {
	return s.store.ListPortfolios(ctx)
}

// Get finds a portfolio by exact id, then with the "port-" prefix added or
// removed.
func (s *Service) Get(ctx context.Context, id string) (*portfolio.Record, error) {
	for _, candidate := range idCandidates(id) {
		record, err := s.store.GetPortfolio(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}
	return nil, ErrNotFound
}

// Lookup resolves key as an exact id, then as a positional index into List
// when it is a bare integer, and only then with the "port-" prefix added or
// removed.
func (s *Service) Lookup(ctx context.Context, key string) (*portfolio.Record, error) {
	key = strings.TrimSpace(key)
	record, err := s.store.GetPortfolio(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}
	if index, convErr := strconv.Atoi(key); convErr == nil && index >= 0 {
		records, err := s.store.ListPortfolios(ctx)
		if err != nil {
			return nil, err
		}
		if index < len(records) {
			return &records[index], nil
		}
	}
	return s.Get(ctx, key)
}

// Submit validates p and stores it under a fresh "port-<millis>" id.
func (s *Service) Submit(ctx context.Context, p portfolio.Portfolio) (portfolio.Record, error) {
	p, err := s.validate(p)
	if err != nil {
		return portfolio.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	id, err := s.freshID(ctx, now)
	if err != nil {
		return portfolio.Record{}, err
	}
	record := portfolio.Record{
		ID:        id,
		Name:      p.Name,
		Tickers:   p.Tickers,
		CreatedAt: now.Format(time.RFC3339Nano),
	}
	if err := s.store.CreatePortfolio(ctx, record); err != nil {
		return portfolio.Record{}, err
	}
	return record, nil
}

func (s *Service) Update(ctx context.Context, id string, p portfolio.Portfolio) (portfolio.Record, error) {
	p, err := s.validate(p)
	if err != nil {
		return portfolio.Record{}, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return portfolio.Record{}, err
	}
	record := portfolio.Record{
		ID:        existing.ID,
		Name:      p.Name,
		Tickers:   p.Tickers,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.store.UpdatePortfolio(ctx, record); err != nil {
		return portfolio.Record{}, err
	}
	return record, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.store.DeletePortfolio(ctx, existing.ID)
}

func (s *Service) validate(p portfolio.Portfolio) (portfolio.Portfolio, error) {
	total, err := portfolio.ValidateStored(p)
	if err != nil {
		rejected := &RejectedError{Status: 400, Message: err.Error()}
		if errors.Is(err, portfolio.ErrWeightSumAbnormal) {
			rejected.Message = fmt.Sprintf("Total weight must equal 1, current total is %s", total.String())
			rejected.TotalWeight = &total
		}
		return portfolio.Portfolio{}, rejected
	}
	out := portfolio.Portfolio{Name: strings.TrimSpace(p.Name), Tickers: make([]portfolio.Ticker, 0, len(p.Tickers))}
	for _, ticker := range p.Tickers {
		out.Tickers = append(out.Tickers, portfolio.Ticker{
			Symbol: strings.ToUpper(strings.TrimSpace(ticker.Symbol)),
			Weight: ticker.Weight,
		})
	}
	return out, nil
}

func (s *Service) freshID(ctx context.Context, now time.Time) (string, error) {
	millis := now.UnixMilli()
	for {
		id := fmt.Sprintf("port-%d", millis)
		existing, err := s.store.GetPortfolio(ctx, id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
		millis++
	}
}

func idCandidates(id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if trimmed, ok := strings.CutPrefix(id, "port-"); ok {
		return []string{id, trimmed}
	}
	return []string{id, "port-" + id}
}
