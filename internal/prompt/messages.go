package prompt

import "fmt"

// Texts are the notices the engine appends as system messages.
type Texts struct {
	Welcome          string
	NewChatTitle     string
	APIKeyRequired   string
	APIKeyInvalid    string
	RateLimited      string
	NetworkError     string
	CallFailed       string
	BadRequest       string
	SentToDashboard  string
	PortfolioError   string
	CreatedPortfolio string
	EmptyAPIKey      string
	PortfolioKeyword string
}

var english = Texts{
	Welcome:          "Welcome to PremiaLab AI Portfolio Analyzer. How can I help you today?",
	NewChatTitle:     "New Chat",
	APIKeyRequired:   "Please set your API key in settings to use this feature.",
	APIKeyInvalid:    "The API key appears to be invalid. Please check and update it in settings.",
	RateLimited:      "You have made too many requests. Please wait a moment and try again.",
	NetworkError:     "Network error. Please check your connection and try again.",
	CallFailed:       "Failed to communicate with the AI service. Please try again later.",
	BadRequest:       "The AI service rejected the request: %s",
	SentToDashboard:  "Portfolio has been sent to the dashboard!",
	PortfolioError:   "Failed to send portfolio. Please try again.",
	CreatedPortfolio: "Created portfolio: %s with %d stocks",
	EmptyAPIKey:      "API key cannot be empty",
	PortfolioKeyword: "portfolio",
}

var chinese = Texts{
	Welcome:          "欢迎使用PremiaLab AI投资组合分析器。我能为您做些什么？",
	NewChatTitle:     "新对话",
	APIKeyRequired:   "请在设置中设置您的API密钥以使用此功能。",
	APIKeyInvalid:    "API密钥似乎无效，请在设置中检查并更新。",
	RateLimited:      "您的请求过多，请稍后再试。",
	NetworkError:     "网络错误，请检查您的连接并重试。",
	CallFailed:       "无法与AI服务通信，请稍后再试。",
	BadRequest:       "AI服务拒绝了请求：%s",
	SentToDashboard:  "投资组合已发送到仪表板！",
	PortfolioError:   "发送投资组合失败，请重试。",
	CreatedPortfolio: "已创建投资组合：%s，包含 %d 只股票",
	EmptyAPIKey:      "API密钥不能为空",
	PortfolioKeyword: "投资组合",
}

func TextsFor(lang Language) Texts {
	if lang == Chinese {
		return chinese
	}
	return english
}

func (t Texts) BadRequestDetail(detail string) string {
	if detail == "" {
		return t.CallFailed
	}
	return fmt.Sprintf(t.BadRequest, detail)
}

func (t Texts) Created(name string, count int) string {
	return fmt.Sprintf(t.CreatedPortfolio, name, count)
}

// PortfolioFailure appends the backend's reason when there is one.
func (t Texts) PortfolioFailure(detail string) string {
	if detail == "" {
		return t.PortfolioError
	}
	return t.PortfolioError + " (" + detail + ")"
}
