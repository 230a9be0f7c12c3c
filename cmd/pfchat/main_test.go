package main

import (
	"bytes"
	"flag"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/require"

	"github.com/folioscope/portfolio-chat/internal/api"
	"github.com/folioscope/portfolio-chat/internal/backend"
	"github.com/folioscope/portfolio-chat/internal/chat"
	"github.com/folioscope/portfolio-chat/internal/config"
	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store/memory"
)

const testAPIKey = "pplx-0123456789abcdefghijklmnopqrstuv"

func capturePfchatDeps() func() {
	origLoadConfig := loadConfig
	origOpenState := openState
	origNewBackend := newBackend
	origStdout := stdout
	origStdin := stdin
	origIsTerminal := isTerminal

	return func() {
		loadConfig = origLoadConfig
		openState = origOpenState
		newBackend = origNewBackend
		stdout = origStdout
		stdin = origStdin
		isTerminal = origIsTerminal
	}
}

// setupCLI points the CLI at a temp state file and an in-process portfolio
// backend shared by every invocation of the test.
func setupCLI(t *testing.T, mutate func(cfg *config.Config)) *backend.Service {
	t.Helper()
	restore := capturePfchatDeps()
	t.Cleanup(restore)

	cfg := config.Config{
		SQLitePath:          filepath.Join(t.TempDir(), "state.db"),
		LLMProvider:         "local",
		LLMRetryMaxAttempts: 1,
		VaultKey:            strings.Repeat("k", 32),
		VaultTTL:            time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	loadConfig = func() (config.Config, error) { return cfg, nil }

	portfolios := backend.NewService(memory.New())
	newBackend = func(string) chat.PortfolioBackend { return portfolios }
	isTerminal = func() bool { return false }
	return portfolios
}

func runCLI(t *testing.T, args ...string) (string, subcommands.ExitStatus) {
	t.Helper()
	var out bytes.Buffer
	stdout = &out

	fs := flag.NewFlagSet("pfchat", flag.ContinueOnError)
	fs.StringVar(apiURL, "api", "", "")
	fs.StringVar(statePath, "state", "", "")
	commander := subcommands.NewCommander(fs, "pfchat")
	register(commander)
	require.NoError(t, fs.Parse(args))
	status := commander.Execute(t.Context())
	return out.String(), status
}

// listed parses `pfchat list` output into ids and the active id.
func listed(t *testing.T) (ids []string, active string) {
	t.Helper()
	out, status := runCLI(t, "list")
	require.Equal(t, subcommands.ExitSuccess, status)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] == "*" {
			active = fields[1]
			ids = append(ids, fields[1])
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids, active
}

func TestSendThenSubmit(t *testing.T) {
	portfolios := setupCLI(t, nil)

	out, status := runCLI(t, "send", "Build", "me", "a", "tech", "portfolio")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Tech Stock Portfolio")
	require.Contains(t, out, "pfchat submit")

	ids, active := listed(t)
	require.Len(t, ids, 1)
	require.Equal(t, ids[0], active)

	out, status = runCLI(t, "submit")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Created portfolio port-")

	records, err := portfolios.List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)

	out, status = runCLI(t, "portfolio")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, records[0].ID)
	require.Contains(t, out, "| Symbol | Weight |")

	out, status = runCLI(t, "portfolio", "-all")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Tech Stock Portfolio (4 tickers)")

	_, status = runCLI(t, "submit")
	require.Equal(t, subcommands.ExitFailure, status)

	out, status = runCLI(t, "history")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "user: Build me a tech portfolio")
	require.Contains(t, out, "assistant:")
}

func TestSendWithSubmitFlag(t *testing.T) {
	portfolios := setupCLI(t, nil)

	out, status := runCLI(t, "send", "-submit", "Build me a tech portfolio")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Created portfolio port-")

	records, err := portfolios.List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Tech Stock Portfolio", records[0].Name)
}

func TestSubmitThroughAPI(t *testing.T) {
	setupCLI(t, nil)
	newBackend = func(baseURL string) chat.PortfolioBackend { return backend.NewClient(baseURL) }

	st := memory.New()
	services := api.Services{Store: st, Portfolios: backend.NewService(st)}
	server := httptest.NewServer(api.NewServer(services, config.Config{}).Router())
	t.Cleanup(server.Close)

	out, status := runCLI(t, "-api", server.URL, "send", "-submit", "Build me a tech portfolio")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Created portfolio port-")

	records, err := services.Portfolios.List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestSendRequiresText(t *testing.T) {
	setupCLI(t, nil)

	_, status := runCLI(t, "send", "   ")
	require.Equal(t, subcommands.ExitUsageError, status)
}

func TestConversationCommands(t *testing.T) {
	setupCLI(t, nil)

	_, status := runCLI(t, "send", "first question")
	require.Equal(t, subcommands.ExitSuccess, status)
	_, status = runCLI(t, "new")
	require.Equal(t, subcommands.ExitSuccess, status)
	_, status = runCLI(t, "send", "second question")
	require.Equal(t, subcommands.ExitSuccess, status)

	ids, active := listed(t)
	require.Len(t, ids, 2)
	var other string
	for _, id := range ids {
		if id != active {
			other = id
		}
	}
	require.NotEmpty(t, other)

	_, status = runCLI(t, "switch", other)
	require.Equal(t, subcommands.ExitSuccess, status)
	_, nowActive := listed(t)
	require.Equal(t, other, nowActive)

	_, status = runCLI(t, "switch", "conv-missing")
	require.Equal(t, subcommands.ExitFailure, status)
	_, status = runCLI(t, "switch")
	require.Equal(t, subcommands.ExitUsageError, status)

	out, status := runCLI(t, "delete", other)
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Active conversation:")

	ids, _ = listed(t)
	require.Len(t, ids, 1)
	require.NotEqual(t, other, ids[0])
}

func TestManualCommand(t *testing.T) {
	portfolios := setupCLI(t, nil)

	out, status := runCLI(t, "manual", "-name", "Core", "aapl=60", "MSFT=40%")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "Created portfolio")
	require.Contains(t, out, "| AAPL | 60.00% |")

	records, err := portfolios.List(t.Context())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Core", records[0].Name)
	require.InDelta(t, 0.4, records[0].Tickers[1].Weight, 1e-9)

	_, status = runCLI(t, "manual", "AAPL=60", "MSFT=35")
	require.Equal(t, subcommands.ExitFailure, status)

	_, status = runCLI(t, "manual", "AAPL")
	require.Equal(t, subcommands.ExitUsageError, status)
}

func TestKeyCommand(t *testing.T) {
	setupCLI(t, nil)

	out, status := runCLI(t, "key", "status")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "No API key stored.")

	_, status = runCLI(t, "key", "set", "short")
	require.Equal(t, subcommands.ExitFailure, status)

	stdin = strings.NewReader(testAPIKey + "\n")
	out, status = runCLI(t, "key", "set")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "****stuv")
	require.NotContains(t, out, testAPIKey)

	out, status = runCLI(t, "key", "status")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "expires")

	out, status = runCLI(t, "key", "clear")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "No API key stored.")

	_, status = runCLI(t, "key", "rotate")
	require.Equal(t, subcommands.ExitUsageError, status)
}

func TestMissingVaultKey(t *testing.T) {
	setupCLI(t, func(cfg *config.Config) { cfg.VaultKey = "" })

	_, status := runCLI(t, "list")
	require.Equal(t, subcommands.ExitFailure, status)
}

func TestStocksCommand(t *testing.T) {
	setupCLI(t, nil)

	out, status := runCLI(t, "stocks", "apple")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "AAPL")
	require.NotContains(t, out, "MSFT")

	out, status = runCLI(t, "stocks")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Contains(t, out, "JNJ")
}

func TestParseRows(t *testing.T) {
	rows, err := parseRows([]string{"nvda=50", " V = 50% "})
	require.NoError(t, err)
	require.Equal(t, []portfolio.Ticker{{Symbol: "NVDA", Weight: 50}, {Symbol: "V", Weight: 50}}, rows)

	_, err = parseRows(nil)
	require.Error(t, err)
	_, err = parseRows([]string{"AAPL=lots"})
	require.Error(t, err)
}

func TestDisplayPlainWhenPiped(t *testing.T) {
	restore := capturePfchatDeps()
	t.Cleanup(restore)

	var out bytes.Buffer
	stdout = &out
	isTerminal = func() bool { return false }
	display("**bold**")
	require.Equal(t, "**bold**\n", out.String())
}
