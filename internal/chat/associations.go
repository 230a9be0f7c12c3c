package chat

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

// ErrPortfolioNotFound is what a PortfolioBackend returns for unknown ids.
var ErrPortfolioNotFound = store.ErrNotFound

var legacyPortfolioID = regexp.MustCompile(`^test-(\d+)$`)

// PortfolioBackend is where accepted portfolios are stored.
type PortfolioBackend interface {
	Submit(ctx context.Context, p portfolio.Portfolio) (portfolio.Record, error)
	Get(ctx context.Context, id string) (*portfolio.Record, error)
	List(ctx context.Context) ([]portfolio.Record, error)
}

// AssociationRegistry maps a conversation to the portfolio last submitted
// from it.
type AssociationRegistry struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewAssociationRegistry() *AssociationRegistry {
	return &AssociationRegistry{entries: map[string]string{}}
}

func (r *AssociationRegistry) Associate(conversationID, portfolioID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[conversationID] = portfolioID
}

func (r *AssociationRegistry) Resolve(conversationID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.entries[conversationID]
	return id, ok
}

func (r *AssociationRegistry) Remove(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, conversationID)
}

// CanonicalID rewrites a legacy placeholder id "test-<millis>" to the
// backend form "port-<millis>".
func CanonicalID(id string) (string, bool) {
	match := legacyPortfolioID.FindStringSubmatch(id)
	if match == nil {
		return "", false
	}
	return "port-" + match[1], true
}

// Reconcile looks up the portfolio associated with conversationID. A legacy
// id that the backend does not know is rewritten once to its canonical form
// and re-associated, whether or not the rewritten id resolves. The bool
// reports whether the mapping changed.
func (r *AssociationRegistry) Reconcile(ctx context.Context, conversationID string, backend PortfolioBackend) (*portfolio.Record, bool, error) {
	id, ok := r.Resolve(conversationID)
	if !ok {
		return nil, false, nil
	}
	record, err := backend.Get(ctx, id)
	if err == nil {
		return record, false, nil
	}
	if !errors.Is(err, ErrPortfolioNotFound) {
		return nil, false, err
	}
	canonical, ok := CanonicalID(id)
	if !ok {
		return nil, false, nil
	}
	r.Associate(conversationID, canonical)
	record, err = backend.Get(ctx, canonical)
	if errors.Is(err, ErrPortfolioNotFound) {
		return nil, true, nil
	}
	return record, true, err
}

func (r *AssociationRegistry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

func (r *AssociationRegistry) Restore(entries map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]string, len(entries))
	for k, v := range entries {
		if v != "" {
			r.entries[k] = v
		}
	}
}
