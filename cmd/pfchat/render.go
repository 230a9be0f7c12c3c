package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

var (
	rendererOnce sync.Once
	renderer     *glamour.TermRenderer
)

// isTerminal reports whether stdout is an interactive terminal. Markdown is
// only rendered there so piped output stays plain.
var isTerminal = func() bool {
	f, ok := stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderMarkdown(content string) string {
	rendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			renderer = r
		}
	})
	if renderer == nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func display(content string) {
	if isTerminal() {
		fmt.Fprint(stdout, renderMarkdown(content))
		return
	}
	fmt.Fprintln(stdout, content)
}

var hundred = decimal.NewFromInt(100)

// portfolioMarkdown renders weights as percentages in a markdown table.
func portfolioMarkdown(p portfolio.Portfolio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n| Symbol | Weight |\n|---|---:|\n", p.Name)
	for _, ticker := range p.Tickers {
		pct := decimal.NewFromFloat(ticker.Weight).Mul(hundred).StringFixed(2)
		fmt.Fprintf(&b, "| %s | %s%% |\n", ticker.Symbol, pct)
	}
	return b.String()
}
