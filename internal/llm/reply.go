package llm

import (
	"encoding/json"
	"strings"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

// Reply is the assistant output split into prose and an optional portfolio.
type Reply struct {
	Text      string
	Portfolio *portfolio.Portfolio
}

type replyEnvelope struct {
	Response  string               `json:"response"`
	Portfolio *portfolio.Portfolio `json:"portfolio"`
}

// ParseReply reads the JSON reply contract. Anything that does not parse is
// treated as plain prose with no portfolio.
func ParseReply(raw string) Reply {
	body := stripFence(strings.TrimSpace(raw))
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	} else {
		return Reply{Text: raw}
	}
	var envelope replyEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return Reply{Text: raw}
	}
	text := strings.TrimSpace(envelope.Response)
	if text == "" && envelope.Portfolio == nil {
		return Reply{Text: raw}
	}
	if envelope.Portfolio != nil && len(envelope.Portfolio.Tickers) == 0 && envelope.Portfolio.Name == "" {
		envelope.Portfolio = nil
	}
	return Reply{Text: text, Portfolio: envelope.Portfolio}
}

func stripFence(body string) string {
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if newline := strings.Index(body, "\n"); newline >= 0 {
		body = body[newline+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(body), "```"))
}
