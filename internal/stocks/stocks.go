// Package stocks is the static symbol catalog used for lookups while a
// portfolio is typed in.
package stocks

import (
	"sort"
	"strings"
)

const DefaultLimit = 8

type Stock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

type Catalog struct {
	stocks []Stock
}

var defaultStocks = []Stock{
	{Symbol: "AAPL", Name: "Apple Inc.", Sector: "Technology"},
	{Symbol: "MSFT", Name: "Microsoft Corp.", Sector: "Technology"},
	{Symbol: "GOOGL", Name: "Alphabet Inc.", Sector: "Communication Services"},
	{Symbol: "AMZN", Name: "Amazon.com Inc.", Sector: "Consumer Discretionary"},
	{Symbol: "TSLA", Name: "Tesla Inc.", Sector: "Consumer Discretionary"},
	{Symbol: "META", Name: "Meta Platforms Inc.", Sector: "Communication Services"},
	{Symbol: "NVDA", Name: "NVIDIA Corporation", Sector: "Technology"},
	{Symbol: "JPM", Name: "JPMorgan Chase & Co.", Sector: "Financial Services"},
	{Symbol: "V", Name: "Visa Inc.", Sector: "Financial Services"},
	{Symbol: "JNJ", Name: "Johnson & Johnson", Sector: "Healthcare"},
}

func Default() *Catalog {
	return New(defaultStocks)
}

// New builds a catalog sorted by symbol. Duplicate symbols keep the first entry.
func New(entries []Stock) *Catalog {
	seen := map[string]bool{}
	stocks := make([]Stock, 0, len(entries))
	for _, entry := range entries {
		entry.Symbol = strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if entry.Symbol == "" || seen[entry.Symbol] {
			continue
		}
		seen[entry.Symbol] = true
		stocks = append(stocks, entry)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Symbol < stocks[j].Symbol })
	return &Catalog{stocks: stocks}
}

func (c *Catalog) All() []Stock {
	return append([]Stock{}, c.stocks...)
}

// Search matches query case-insensitively against symbols and names.
func (c *Catalog) Search(query string, limit int) []Stock {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []Stock{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := []Stock{}
	for _, stock := range c.stocks {
		if strings.Contains(strings.ToLower(stock.Symbol), query) || strings.Contains(strings.ToLower(stock.Name), query) {
			results = append(results, stock)
			if len(results) == limit {
				break
			}
		}
	}
	return results
}

func (c *Catalog) Lookup(symbol string) (Stock, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	i := sort.Search(len(c.stocks), func(i int) bool { return c.stocks[i].Symbol >= symbol })
	if i < len(c.stocks) && c.stocks[i].Symbol == symbol {
		return c.stocks[i], true
	}
	return Stock{}, false
}
