package store

import (
	"context"
	"errors"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

var ErrNotFound = errors.New("not found")

// PortfolioStore keeps portfolios accepted by the backend. Lookups return
// nil, nil when the id is unknown.
type PortfolioStore interface {
	ListPortfolios(ctx context.Context) ([]portfolio.Record, error)
	GetPortfolio(ctx context.Context, id string) (*portfolio.Record, error)
	CreatePortfolio(ctx context.Context, record portfolio.Record) error
	UpdatePortfolio(ctx context.Context, record portfolio.Record) error
	DeletePortfolio(ctx context.Context, id string) error
}

// StateStore is a flat string key-value space for client state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	PutState(ctx context.Context, key string, value string) error
	DeleteState(ctx context.Context, key string) error
}

type Store interface {
	PortfolioStore
	StateStore
}
