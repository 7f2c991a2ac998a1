package writer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/llm"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/prompt"
)

const noteMaxTokens = 2048

// ErrCreatorNotFound 博主不存在时 error 片段的内容
const ErrCreatorNotFound = "博主不存在"

// Options 生成参数
type Options struct {
	CategoryID        string
	SubTopicID        string
	IncludeReferences bool
}

// Writer 笔记生成器
type Writer struct {
	catalog   *catalog.Catalog
	builder   *prompt.Builder
	streamer  llm.Streamer
	maxTokens int
	logger    *slog.Logger
}

// New 创建笔记生成器
func New(c *catalog.Catalog, b *prompt.Builder, s llm.Streamer, logger *slog.Logger) *Writer {
	return &Writer{
		catalog:   c,
		builder:   b,
		streamer:  s,
		maxTokens: noteMaxTokens,
		logger:    logging.Component(logger, "writer"),
	}
}

// WithMaxTokens 覆盖单篇笔记的 token 上限
func (w *Writer) WithMaxTokens(n int) *Writer {
	if n > 0 {
		w.maxTokens = n
	}
	return w
}

// GenerateNoteStream 以博主身份流式生成一篇笔记
func (w *Writer) GenerateNoteStream(ctx context.Context, creatorID, topic string, opts Options) iter.Seq[llm.Chunk] {
	creator := w.catalog.Creator(creatorID)
	if creator == nil {
		return func(yield func(llm.Chunk) bool) {
			yield(llm.Chunk{Type: llm.ChunkError, Content: ErrCreatorNotFound})
		}
	}

	system := w.builder.BuildSmartPrompt(prompt.Options{
		Creator:           *creator,
		Topic:             topic,
		CategoryID:        opts.CategoryID,
		SubTopicID:        opts.SubTopicID,
		IncludeReferences: opts.IncludeReferences,
		MaxReferences:     prompt.DefaultMaxReferences,
	})
	w.logger.Debug("提示词已生成", "creator", creatorID, "topic", topic, "length", len(system))

	return w.streamer.Stream(ctx, llm.Request{
		System:    system,
		Messages:  []llm.Message{{Role: "user", Content: UserPrompt(topic)}},
		MaxTokens: w.maxTokens,
	})
}

// UserPrompt 用户消息
func UserPrompt(topic string) string {
	return fmt.Sprintf("请写一篇关于「%s」的小红薯笔记", topic)
}
