package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/folioscope/portfolio-chat/internal/api"
	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/events"
	"github.com/folioscope/portfolio-chat/internal/prompt"
	"github.com/folioscope/portfolio-chat/internal/secrets"
	"github.com/folioscope/portfolio-chat/internal/store"
	"github.com/folioscope/portfolio-chat/internal/store/memory"
	"github.com/folioscope/portfolio-chat/internal/store/postgres"
	"github.com/folioscope/portfolio-chat/internal/store/sqlite"
	"github.com/folioscope/portfolio-chat/internal/vault"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig       = config.Load
	newBroker        = events.NewBroker
	newPostgresStore = func(conn string) (store.Store, func() error, error) {
		st, err := postgres.New(conn)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	openSQLiteStore = func(path string) (store.Store, func() error, error) {
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	newServer = func(services api.Services, cfg config.Config) server {
		return api.NewServer(services, cfg)
	}
	notifyContext = signal.NotifyContext
	randomKey     = func() ([]byte, error) {
		key := make([]byte, secrets.KeySize)
		_, err := rand.Read(key)
		return key, err
	}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Printf("warning: failed to close store: %v", err)
		}
	}()

	portfolios := backend.NewService(st)
	if err := portfolios.Seed(ctx); err != nil {
		log.Printf("warning: failed to seed demo portfolios: %v", err)
	}

	credentials, err := openVault(ctx, cfg, st)
	if err != nil {
		return err
	}

	broker := newBroker()
	language := prompt.ParseLanguage(cfg.ChatLanguage)
	engine := chat.NewEngine(chat.Deps{
		Invoker:  chat.NewInvoker(chat.InvokerConfigFrom(cfg), credentials),
		Backend:  portfolios,
		State:    chat.NewStateRepository(st),
		Events:   broker,
		Language: language,
		Prompts:  prompt.NewBuilder(language),
	})
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("load conversation state: %w", err)
	}

	server := newServer(api.Services{
		Store:      st,
		Broker:     broker,
		Portfolios: portfolios,
		Engine:     engine,
		Vault:      credentials,
	}, cfg)

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Printf("portfolio API listening on %s (store: %s, provider: %s)", addr, cfg.StoreDriver, cfg.LLMProvider)
	if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func openStore(cfg config.Config) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return memory.New(), func() error { return nil }, nil
	case "postgres":
		return newPostgresStore(cfg.PostgresURL)
	case "sqlite":
		return openSQLiteStore(cfg.SQLitePath)
	default:
		return nil, nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
}

// openVault resolves the sealing key and seeds the credential from config
// when one is given. A memory store loses everything on exit, so it may run
// with a throwaway key.
func openVault(ctx context.Context, cfg config.Config, st store.StateStore) (*vault.Vault, error) {
	key, err := secrets.ResolveKey(cfg.VaultKey, cfg.VaultPassphrase, cfg.VaultSalt)
	if errors.Is(err, secrets.ErrKeyRequired) && (cfg.StoreDriver == "" || cfg.StoreDriver == "memory") {
		log.Printf("warning: no VAULT_KEY or VAULT_PASSPHRASE set, using an ephemeral key")
		key, err = randomKey()
	}
	if err != nil {
		return nil, err
	}
	credentials, err := vault.New(st, key, cfg.VaultTTL)
	if err != nil {
		return nil, err
	}
	if cfg.LLMAPIKey != "" {
		if err := vault.ValidateFormat(cfg.LLMAPIKey); err != nil {
			return nil, fmt.Errorf("LLM_API_KEY: %w", err)
		}
		if err := credentials.Save(ctx, cfg.LLMAPIKey); err != nil {
			return nil, fmt.Errorf("store LLM_API_KEY: %w", err)
		}
	}
	return credentials, nil
}
