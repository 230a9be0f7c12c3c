package llm

import (
	"context"
	"strings"
)

const LocalReply = "This is a test response from the AI assistant."

// LocalPortfolioReply is what LocalProvider answers when asked about a
// portfolio. It follows the same JSON contract the remote models are told to use.
const LocalPortfolioReply = `{"response":"Here is a diversified technology portfolio.","portfolio":{"name":"Tech Stock Portfolio","tickers":[{"symbol":"AAPL","weight":0.4},{"symbol":"MSFT","weight":0.3},{"symbol":"GOOGL","weight":0.2},{"symbol":"AMZN","weight":0.1}]}}`

var portfolioKeywords = []string{"portfolio", "投资组合"}

// LocalProvider returns canned replies without touching the network.
type LocalProvider struct{}

func (LocalProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", networkError(err)
	}
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = strings.ToLower(messages[i].Content)
			break
		}
	}
	for _, keyword := range portfolioKeywords {
		if strings.Contains(last, keyword) {
			return LocalPortfolioReply, nil
		}
	}
	return LocalReply, nil
}
