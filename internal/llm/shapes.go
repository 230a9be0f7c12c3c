package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Shape names one place a provider puts a value in its JSON body.
type Shape struct {
	Name string
	Path string
}

// ContentShapes lists where completion text is found, most common first.
var ContentShapes = []Shape{
	{Name: "chat-completions", Path: "$.choices[0].message.content"},
	{Name: "gemini-candidates", Path: "$.candidates[0].content.parts[0].text"},
	{Name: "ollama-chat", Path: "$.message.content"},
	{Name: "legacy-completions", Path: "$.choices[0].text"},
}

// ErrorDetailShapes lists where a human readable reason is found in an
// error body.
var ErrorDetailShapes = []Shape{
	{Name: "openai-error", Path: "$.error.message"},
	{Name: "fastapi-detail", Path: "$.detail"},
	{Name: "plain-message", Path: "$.message"},
	{Name: "bare-error", Path: "$.error"},
}

var ErrNoContent = errors.New("LLM response had no content")

// ExtractContent returns the first non-empty string any content shape
// resolves to.
func ExtractContent(body []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("decode LLM response: %w", err)
	}
	if value, ok := firstString(doc, ContentShapes); ok {
		return value, nil
	}
	return "", ErrNoContent
}

// ExtractErrorDetail digs a reason out of an error body. Non-JSON bodies are
// returned trimmed when short enough to be a message.
func ExtractErrorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		if len(trimmed) > 200 {
			return ""
		}
		return trimmed
	}
	value, _ := firstString(doc, ErrorDetailShapes)
	return value
}

func firstString(doc any, shapes []Shape) (string, bool) {
	for _, shape := range shapes {
		raw, err := jsonpath.Get(shape.Path, doc)
		if err != nil {
			continue
		}
		if list, ok := raw.([]any); ok {
			if len(list) == 0 {
				continue
			}
			raw = list[0]
		}
		value, ok := raw.(string)
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}
	return "", false
}
