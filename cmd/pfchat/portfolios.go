package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/stocks"
)

type submitCmd struct{}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "submit the portfolio extracted from the last answer" }
func (*submitCmd) Usage() string {
	return `pfchat submit

  Sends the active conversation's draft portfolio to the portfolio API and
  links the created portfolio to the conversation.
`
}
func (*submitCmd) SetFlags(*flag.FlagSet) {}

func (*submitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		record, err := s.engine.SubmitDraft(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created portfolio %s\n", record.ID)
		return nil
	})
}

type manualCmd struct {
	name string
}

func (*manualCmd) Name() string     { return "manual" }
func (*manualCmd) Synopsis() string { return "create a portfolio from explicit weights" }
func (*manualCmd) Usage() string {
	return `pfchat manual [-name <name>] <SYMBOL=percent>...

  Builds a portfolio by hand. Percentages must add up to 100 (within half a
  point) and are clamped to [0, 100]. Example:

    pfchat manual -name "Core" AAPL=60 MSFT=40
`
}

func (c *manualCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", portfolio.DefaultManualName, "Name of the portfolio.")
}

func (c *manualCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rows, err := parseRows(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		s.engine.EditManual(func(form *portfolio.ManualForm) {
			form.Name = strings.TrimSpace(c.name)
			form.Rows = make([]portfolio.Ticker, len(rows))
			for i, row := range rows {
				form.SetSymbol(i, row.Symbol)
				form.SetWeight(i, row.Weight)
			}
		})
		record, err := s.engine.SubmitManual(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created portfolio %s\n", record.ID)
		display(portfolioMarkdown(record.Portfolio()))
		return nil
	})
}

// parseRows reads SYMBOL=percent pairs.
func parseRows(args []string) ([]portfolio.Ticker, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one SYMBOL=percent pair is required")
	}
	rows := make([]portfolio.Ticker, 0, len(args))
	for _, arg := range args {
		symbol, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid row %q, want SYMBOL=percent", arg)
		}
		weight, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight for %s: %w", symbol, err)
		}
		rows = append(rows, portfolio.Ticker{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Weight: weight})
	}
	return rows, nil
}

type portfolioCmd struct {
	all bool
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "show the portfolio linked to the active conversation" }
func (*portfolioCmd) Usage() string {
	return `pfchat portfolio [-all]

  Shows the portfolio last submitted from the active conversation. With
  -all, lists every portfolio stored by the portfolio API instead.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "List every stored portfolio.")
}

func (c *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		if c.all {
			records, err := s.backend.List(ctx)
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Fprintf(stdout, "%s  %s (%d tickers)\n", record.ID, record.Name, len(record.Tickers))
			}
			return nil
		}
		record, err := s.engine.ActivePortfolio(ctx)
		if err != nil {
			return err
		}
		if record == nil {
			fmt.Fprintln(stdout, "No portfolio linked to the active conversation.")
			return nil
		}
		fmt.Fprintf(stdout, "%s  created %s\n", record.ID, record.CreatedAt)
		display(portfolioMarkdown(record.Portfolio()))
		return nil
	})
}

type stocksCmd struct {
	limit int
}

func (*stocksCmd) Name() string     { return "stocks" }
func (*stocksCmd) Synopsis() string { return "search the stock catalog" }
func (*stocksCmd) Usage() string {
	return `pfchat stocks [-n <limit>] [<query>]

  Lists catalog stocks whose symbol or name contains the query. Without a
  query, lists the whole catalog.
`
}

func (c *stocksCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "Maximum number of matches.")
}

func (c *stocksCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	catalog := stocks.Default()
	query := strings.Join(f.Args(), " ")
	found := catalog.All()
	if strings.TrimSpace(query) != "" {
		found = catalog.Search(query, c.limit)
	}
	for _, stock := range found {
		fmt.Fprintf(stdout, "%-6s %-28s %s\n", stock.Symbol, stock.Name, stock.Sector)
	}
	return subcommands.ExitSuccess
}
