package llm

import (
	"context"
	"errors"
	"strings"
)

// DefaultBaseURL Anthropic 官方地址
const DefaultBaseURL = "https://api.anthropic.com"

// ErrEmptyCompletion 补全结果为空
var ErrEmptyCompletion = errors.New("补全结果为空")

// Completer 把流式接口包装成单轮补全，供自定义接口地址使用
type Completer struct {
	streamer  Streamer
	maxTokens int
}

func NewCompleter(s Streamer, maxTokens int) *Completer {
	return &Completer{streamer: s, maxTokens: maxTokens}
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := Collect(c.streamer.Stream(ctx, Request{
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	}))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// IsDefaultBaseURL 判断是否指向官方地址
func IsDefaultBaseURL(baseURL string) bool {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return u == "" || u == DefaultBaseURL
}
