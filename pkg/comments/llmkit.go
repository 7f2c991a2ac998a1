// pkg/comments/llmkit.go
package comments

import (
	"context"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"AgentFeed/pkg/llm"
)

// ErrEmptyCompletion 补全结果为空
var ErrEmptyCompletion = llm.ErrEmptyCompletion

// LLMKitCompleter 通过 llmkit 调用 Anthropic 官方非流式接口
// 配置了自定义地址时改用 llm.Completer
type LLMKitCompleter struct {
	apiKey   string
	settings types.RequestSettings
}

func NewLLMKitCompleter(apiKey, model string, maxTokens int, temperature float64) *LLMKitCompleter {
	return &LLMKitCompleter{
		apiKey: apiKey,
		settings: types.RequestSettings{
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	}
}

func (c *LLMKitCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	response, err := anthropic.PromptWithSettings("", prompt, "", c.apiKey, c.settings)
	if err != nil {
		return "", fmt.Errorf("评论生成请求失败: %w", err)
	}
	if len(response.Content) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(response.Content[0].Text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
