package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/prompt"
	"github.com/folioscope/portfolio-chat/internal/secrets"
	"github.com/folioscope/portfolio-chat/internal/store"
	"github.com/folioscope/portfolio-chat/internal/store/sqlite"
	"github.com/folioscope/portfolio-chat/internal/vault"
)

var apiURL = flag.String("api", "", "Base URL of the portfolio API (defaults to API_BASE_URL)")
var statePath = flag.String("state", "", "Path to the local state database (defaults to SQLITE_PATH)")

var (
	loadConfig = config.Load
	openState  = func(path string) (store.StateStore, func() error, error) {
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}
	newBackend = func(baseURL string) chat.PortfolioBackend {
		return backend.NewClient(baseURL)
	}
	stdout io.Writer = os.Stdout
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")

	c.Register(&sendCmd{}, "chat")
	c.Register(&historyCmd{}, "chat")
	c.Register(&newCmd{}, "conversations")
	c.Register(&listCmd{}, "conversations")
	c.Register(&switchCmd{}, "conversations")
	c.Register(&deleteCmd{}, "conversations")
	c.Register(&submitCmd{}, "portfolios")
	c.Register(&manualCmd{}, "portfolios")
	c.Register(&portfolioCmd{}, "portfolios")
	c.Register(&stocksCmd{}, "portfolios")
	c.Register(&keyCmd{}, "credential")
}

// session is one CLI invocation's view of the persisted chat state.
type session struct {
	cfg     config.Config
	engine  *chat.Engine
	backend chat.PortfolioBackend
	vault   *vault.Vault
	close   func() error
}

// openSession loads config, opens the local state database and restores the
// engine from it. Callers must call close.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *statePath != "" {
		cfg.SQLitePath = *statePath
	}

	key, err := secrets.ResolveKey(cfg.VaultKey, cfg.VaultPassphrase, cfg.VaultSalt)
	if errors.Is(err, secrets.ErrKeyRequired) {
		return nil, fmt.Errorf("%w: set VAULT_KEY or VAULT_PASSPHRASE to keep the API key on disk", err)
	}
	if err != nil {
		return nil, err
	}

	st, closeState, err := openState(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	credentials, err := vault.New(st, key, cfg.VaultTTL)
	if err != nil {
		_ = closeState()
		return nil, err
	}

	portfolios := newBackend(cfg.APIBaseURL)
	language := prompt.ParseLanguage(cfg.ChatLanguage)
	engine := chat.NewEngine(chat.Deps{
		Invoker:  chat.NewInvoker(chat.InvokerConfigFrom(cfg), credentials),
		Backend:  portfolios,
		State:    chat.NewStateRepository(st),
		Language: language,
		Prompts:  prompt.NewBuilder(language),
	})
	if err := engine.Load(ctx); err != nil {
		_ = closeState()
		return nil, fmt.Errorf("load conversation state: %w", err)
	}
	return &session{cfg: cfg, engine: engine, backend: portfolios, vault: credentials, close: closeState}, nil
}

// withSession runs fn against an open session and maps errors to an exit
// status.
func withSession(ctx context.Context, fn func(s *session) error) subcommands.ExitStatus {
	s, err := openSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := s.close(); err != nil {
			fmt.Fprintln(os.Stderr, "warning: failed to close state:", err)
		}
	}()
	if err := fn(s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
