// pkg/imagegen/prompt_writer.go
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"
)

const minAIPromptRunes = 30

// Completer 单轮文本补全
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var categoryNames = map[string]string{
	"beauty":  "美妆护肤",
	"fashion": "穿搭时尚",
	"food":    "美食探店",
	"travel":  "旅行攻略",
	"home":    "家居生活",
	"fitness": "健身运动",
	"tech":    "数码科技",
	"study":   "学习成长",
}

const aiPromptInstructions = `You are an image prompt generator. Generate English prompts for AI image generation based on Chinese article titles.

Rules:
1. Output ONLY the English prompt, nothing else
2. Describe specific objects, scenes, lighting, style, composition
3. NO humans, faces, text, logos, watermarks
4. 50-80 English words
5. Style: elegant, aesthetic, suitable for Xiaohongshu (Chinese social media)

Examples:
Input: 冬季嘴唇干裂起皮？这个方法3天见效
Output: lip care products flat lay, pink lip balm tubes and jars, rose petals scattered, soft pink marble background, honey dripping, moisturizing texture, warm soft lighting, beauty product photography, luxurious aesthetic, top down view

Input: 哈尔滨冰雪大世界攻略
Output: Harbin ice sculpture at night, colorful LED lights illuminating ice castle, snow falling gently, winter wonderland scene, blue hour photography, magical atmosphere, wide angle landscape, frozen architecture details

Input: iPhone 16 Pro使用体验
Output: iPhone 16 Pro on marble desk, titanium finish gleaming, camera module detail, minimalist setup, soft window light, tech product photography, Apple aesthetic, clean composition, premium feel`

// PromptWriter 让大模型按标题写英文提示词，不可用时退回 BuildPrompt
type PromptWriter struct {
	completer Completer
	logger    *slog.Logger
}

func NewPromptWriter(c Completer, logger *slog.Logger) *PromptWriter {
	return &PromptWriter{completer: c, logger: logger}
}

// AIPromptRequest 发给大模型的完整提示
func AIPromptRequest(title, category string) string {
	name, ok := categoryNames[category]
	if !ok {
		name = category
	}
	return fmt.Sprintf("%s\n\nTitle: %s\nCategory: %s\n\nGenerate the image prompt:", aiPromptInstructions, title, name)
}

// Prompt 返回最终提示词，带统一的质量后缀
func (w *PromptWriter) Prompt(ctx context.Context, title, category string, kind ImageType) string {
	if w == nil || w.completer == nil {
		return BuildPrompt(title, category, kind)
	}

	raw, err := w.completer.Complete(ctx, AIPromptRequest(title, category))
	if err != nil {
		w.logger.Info("AI提示词生成失败，使用备用方案", "error", err)
		return BuildPrompt(title, category, kind)
	}
	clean, ok := CleanAIPrompt(raw)
	if !ok {
		w.logger.Info("AI提示词不可用，使用备用方案", "raw", raw)
		return BuildPrompt(title, category, kind)
	}
	return clean + promptSuffix
}

// CleanAIPrompt 取第一行并去掉标签前缀
// 含中文或少于30个字符时视为不可用
func CleanAIPrompt(raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimLeft(line, "# ")
	for _, label := range []string{"output", "prompt", "image prompt", "输出", "图片提示词"} {
		if len(line) > len(label) && strings.EqualFold(line[:len(label)], label) {
			rest := strings.TrimLeft(line[len(label):], " ")
			if r, size := utf8.DecodeRuneInString(rest); r == ':' || r == '：' {
				line = strings.TrimSpace(rest[size:])
				break
			}
		}
	}

	for _, r := range line {
		if unicode.Is(unicode.Han, r) {
			return "", false
		}
	}
	if utf8.RuneCountInString(line) < minAIPromptRunes {
		return "", false
	}
	return line, true
}
