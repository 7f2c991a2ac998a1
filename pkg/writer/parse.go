package writer

import (
	"regexp"
	"strings"

	"AgentFeed/pkg/prompt"
)

// PlaceholderTitle 缺少标题标记时使用
const PlaceholderTitle = "无标题"

var tagPattern = regexp.MustCompile(`#[^\s#]+`)

// ParsedNote 解析后的笔记
type ParsedNote struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// section 返回 marker 之后、最近的 stop 之前的文本
func section(raw, marker string, stops ...string) (string, bool) {
	start := strings.Index(raw, marker)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(marker):]
	end := len(rest)
	for _, stop := range stops {
		if i := strings.Index(rest, stop); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end]), true
}

// ParseNoteContent 按标题、正文、标签三个标记拆分模型输出，不会失败
func ParseNoteContent(raw string) ParsedNote {
	parsed := ParsedNote{Title: PlaceholderTitle, Content: raw, Tags: []string{}}

	if title, ok := section(raw, prompt.MarkerTitle, "【"); ok && title != "" {
		parsed.Title = title
	}
	if content, ok := section(raw, prompt.MarkerContent, prompt.MarkerTags); ok && content != "" {
		parsed.Content = content
	}
	if tags, ok := section(raw, prompt.MarkerTags); ok {
		if found := tagPattern.FindAllString(tags, -1); found != nil {
			parsed.Tags = found
		}
	}
	return parsed
}
