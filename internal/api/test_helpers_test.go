package api

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/llm"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/prompt"
	"github.com/folioscope/portfolio-chat/internal/store"
	"github.com/folioscope/portfolio-chat/internal/store/memory"
	"github.com/folioscope/portfolio-chat/internal/vault"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListPortfolios(ctx context.Context) ([]portfolio.Record, error) {
	args := m.Called(ctx)
	var result []portfolio.Record
	if value := args.Get(0); value != nil {
		result = value.([]portfolio.Record)
	}
	return result, args.Error(1)
}

func (m *MockStore) GetPortfolio(ctx context.Context, id string) (*portfolio.Record, error) {
	args := m.Called(ctx, id)
	if value := args.Get(0); value != nil {
		return value.(*portfolio.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) CreatePortfolio(ctx context.Context, record portfolio.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) UpdatePortfolio(ctx context.Context, record portfolio.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) DeletePortfolio(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) GetState(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) PutState(ctx context.Context, key string, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockStore) DeleteState(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.ConversationEvent) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, conversationID string) <-chan events.ConversationEvent {
	args := m.Called(ctx, conversationID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.ConversationEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.ConversationEvent); ok {
			return ch
		}
	}
	return nil
}

var testVaultKey = bytes.Repeat([]byte("k"), 32)

// testServices wires the real components over st with the canned local
// model, so chat routes run without network access.
func testServices(t *testing.T, st store.Store, broker Broker) Services {
	t.Helper()
	portfolios := backend.NewService(st)
	require.NoError(t, portfolios.Seed(context.Background()))

	credentials, err := vault.New(st, testVaultKey, time.Hour)
	require.NoError(t, err)

	var publisher chat.Publisher
	if broker != nil {
		publisher = broker
	}
	engine := chat.NewEngine(chat.Deps{
		Invoker:  chat.NewInvoker(chat.InvokerConfig{LLM: llm.Config{Provider: "local"}}, credentials),
		Backend:  portfolios,
		State:    chat.NewStateRepository(st),
		Events:   publisher,
		Language: prompt.English,
	})
	require.NoError(t, engine.Load(context.Background()))

	return Services{
		Store:      st,
		Broker:     broker,
		Portfolios: portfolios,
		Engine:     engine,
		Vault:      credentials,
	}
}

func newMemoryServer(t *testing.T, cfg config.Config) (*httptest.Server, Services) {
	t.Helper()
	services := testServices(t, memory.New(), events.NewBroker())
	server := httptest.NewServer(NewServer(services, cfg).Router())
	t.Cleanup(server.Close)
	return server, services
}

func newTestServer(t *testing.T, st store.Store, broker Broker, cfg config.Config) *httptest.Server {
	t.Helper()
	server := NewServer(Services{Store: st, Broker: broker}, cfg)
	return httptest.NewServer(server.Router())
}
