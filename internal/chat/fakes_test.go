package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/llm"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

type fakeBackend struct {
	mu        sync.Mutex
	records   map[string]portfolio.Record
	submitted []portfolio.Portfolio
	gets      []string
	nextID    string
	submitErr error
	getErr    error
	// beforeSubmit runs while the engine waits on Submit.
	beforeSubmit func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: map[string]portfolio.Record{}}
}

func (b *fakeBackend) Submit(ctx context.Context, p portfolio.Portfolio) (portfolio.Record, error) {
	if b.beforeSubmit != nil {
		b.beforeSubmit()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, p)
	if b.submitErr != nil {
		return portfolio.Record{}, b.submitErr
	}
	record := portfolio.Record{ID: b.nextID, Name: p.Name, Tickers: p.Tickers, CreatedAt: "2026-01-01T00:00:00Z"}
	if record.ID != "" {
		b.records[record.ID] = record
	}
	return record, nil
}

func (b *fakeBackend) Get(ctx context.Context, id string) (*portfolio.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets = append(b.gets, id)
	if b.getErr != nil {
		return nil, b.getErr
	}
	record, ok := b.records[id]
	if !ok {
		return nil, ErrPortfolioNotFound
	}
	return &record, nil
}

func (b *fakeBackend) List(ctx context.Context) ([]portfolio.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]portfolio.Record, 0, len(b.records))
	for _, record := range b.records {
		out = append(out, record)
	}
	return out, nil
}

type detailError struct{ detail string }

func (e detailError) Error() string  { return "rejected: " + e.detail }
func (e detailError) Detail() string { return e.detail }

// scriptedCompleter returns canned results in order and records what it was sent.
type scriptedCompleter struct {
	mu      sync.Mutex
	results []Result
	errs    []error
	calls   [][]Message
	before  func()
}

func (c *scriptedCompleter) Invoke(ctx context.Context, messages []Message) (Result, error) {
	if c.before != nil {
		c.before()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, messages)
	i := len(c.calls) - 1
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	if err != nil {
		return Result{}, err
	}
	if i < len(c.results) {
		return c.results[i], nil
	}
	return Result{Reply: llm.Reply{Text: llm.LocalReply}, Raw: llm.LocalReply}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ConversationEvent
}

func (p *recordingPublisher) Publish(event events.ConversationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

type fakeCredentials struct {
	mu          sync.Mutex
	key         string
	invalidated int
}

func (c *fakeCredentials) Load(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *fakeCredentials) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.key = ""
	return nil
}

type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	reply string
	calls int
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= len(p.errs) && p.errs[p.calls-1] != nil {
		return "", p.errs[p.calls-1]
	}
	if p.reply == "" {
		return "", errors.New("no reply scripted")
	}
	return p.reply, nil
}
