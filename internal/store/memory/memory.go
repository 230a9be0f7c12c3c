package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

type MemoryStore struct {
	mu         sync.RWMutex
	portfolios map[string]portfolio.Record
	state      map[string]string
}

func New() *MemoryStore {
	return &MemoryStore{
		portfolios: map[string]portfolio.Record{},
		state:      map[string]string{},
	}
}

func (m *MemoryStore) ListPortfolios(ctx context.Context) ([]portfolio.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]portfolio.Record, 0, len(m.portfolios))
	for _, record := range m.portfolios {
		results = append(results, cloneRecord(record))
	}
	sort.SliceStable(results, func(i, j int) bool {
		left, right := parseTime(results[i].CreatedAt), parseTime(results[j].CreatedAt)
		if left.Equal(right) {
			return results[i].ID < results[j].ID
		}
		return left.Before(right)
	})
	return results, nil
}

func (m *MemoryStore) GetPortfolio(ctx context.Context, id string) (*portfolio.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.portfolios[id]
	if !ok {
		return nil, nil
	}
	cloned := cloneRecord(record)
	return &cloned, nil
}

func (m *MemoryStore) CreatePortfolio(ctx context.Context, record portfolio.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[record.ID] = cloneRecord(record)
	return nil
}

func (m *MemoryStore) UpdatePortfolio(ctx context.Context, record portfolio.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.portfolios[record.ID]
	if !ok {
		return store.ErrNotFound
	}
	cloned := cloneRecord(record)
	cloned.CreatedAt = existing.CreatedAt
	m.portfolios[record.ID] = cloned
	return nil
}

func (m *MemoryStore) DeletePortfolio(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portfolios[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.portfolios, id)
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.state[key]
	return value, ok, nil
}

func (m *MemoryStore) PutState(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = value
	return nil
}

func (m *MemoryStore) DeleteState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, key)
	return nil
}

func cloneRecord(record portfolio.Record) portfolio.Record {
	cloned := record
	cloned.Tickers = append([]portfolio.Ticker{}, record.Tickers...)
	return cloned
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
