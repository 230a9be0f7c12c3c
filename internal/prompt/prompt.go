// Package prompt holds the assistant instructions and the localized notices
// the chat engine writes into conversations.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
)

type Language string

const (
	English Language = "en"
	Chinese Language = "zh"

	// FileName overrides the built-in instructions when found in the working
	// directory or any parent.
	FileName = "INSTRUCTIONS.md"
)

func ParseLanguage(value string) Language {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "zh", "zh-cn", "zh_cn", "cn", "chinese":
		return Chinese
	default:
		return English
	}
}

const englishInstructions = `You are a portfolio analysis assistant. If the user wants to create or mentions a specific portfolio (including stock symbols and weights), extract this information and format it as JSON. Always normalize weights as decimals (sum to 1).

Example user request:
"Help me create a portfolio: 40% AAPL, 30% MSFT, 20% GOOGL, 10% AMZN"

You should return:
{
  "response": "I've created a tech stock portfolio for you, including Apple, Microsoft, Google, and Amazon. This is a concentrated portfolio focused on large tech companies. You can send it to the dashboard to see a detailed analysis.",
  "portfolio": {
    "name": "Tech Stock Portfolio",
    "tickers": [
      {"symbol": "AAPL", "weight": 0.4},
      {"symbol": "MSFT", "weight": 0.3},
      {"symbol": "GOOGL", "weight": 0.2},
      {"symbol": "AMZN", "weight": 0.1}
    ]
  }
}

If the user does not provide clear portfolio information, only return a regular answer without the portfolio field:
{
  "response": "Your answer..."
}`

const chineseInstructions = `你是一个投资组合分析助手。如果用户想要创建或提到特定的投资组合（包含股票代码和权重），提取这些信息并格式化为JSON。总是将权重归一化为小数（总和为1）。

用户请求示例：
"帮我创建一个投资组合：40% AAPL，30% MSFT，20% GOOGL，10% AMZN"

你应该返回：
{
  "response": "我已为您创建了一个科技股投资组合，包括苹果、微软、谷歌和亚马逊。这是一个比较集中的投资组合，专注于大型科技公司。您可以将其发送到仪表板查看详细分析。",
  "portfolio": {
    "name": "科技股投资组合",
    "tickers": [
      {"symbol": "AAPL", "weight": 0.4},
      {"symbol": "MSFT", "weight": 0.3},
      {"symbol": "GOOGL", "weight": 0.2},
      {"symbol": "AMZN", "weight": 0.1}
    ]
  }
}

如果用户没有提供明确的投资组合信息，只返回普通回答，不包含portfolio字段：
{
  "response": "您的回答..."
}`

// Instructions returns the built-in task instructions for lang.
func Instructions(lang Language) string {
	if lang == Chinese {
		return chineseInstructions
	}
	return englishInstructions
}

// Builder assembles the system message sent ahead of every remote call.
type Builder struct {
	Language Language
	Override string
}

// NewBuilder picks up an instructions file from disk when one exists.
func NewBuilder(lang Language) Builder {
	override, err := ReadFromDisk()
	if err != nil {
		override = ""
	}
	return Builder{Language: lang, Override: override}
}

// System renders the instructions plus, when present, the conversation's
// associated portfolio.
func (b Builder) System(current *portfolio.Portfolio) string {
	text := b.Override
	if text == "" {
		text = Instructions(b.Language)
	}
	if current == nil || len(current.Tickers) == 0 {
		return text
	}
	label := "Current portfolio"
	if b.Language == Chinese {
		label = "当前投资组合"
	}
	return fmt.Sprintf("%s\n\n%s: %s", text, label, current.Summary())
}

func ReadFromDisk() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := findInParents(cwd, FileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func findInParents(startDir string, filename string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
