// pkg/generator/generator.go
package generator

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/jobs"
	"AgentFeed/pkg/llm"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/model"
	"AgentFeed/pkg/writer"
)

const (
	DefaultTopicDelay   = 2 * time.Second
	DefaultCommentCount = 3
)

var ErrEmptyGeneration = errors.New("生成内容为空")

// TopicStore 热点话题读写
type TopicStore interface {
	Pending(ctx context.Context, limit int) ([]*model.HotTopic, error)
	UpdateStatus(ctx context.Context, id string, status model.TopicStatus, noteID, errMsg string) error
	GenerateStats(ctx context.Context) (*database.GenerateStats, error)
}

// NoteStore 笔记写入
type NoteStore interface {
	Create(ctx context.Context, note *model.Note) error
}

// NoteWriter 流式生成笔记
type NoteWriter interface {
	GenerateNoteStream(ctx context.Context, creatorID, topic string, opts writer.Options) iter.Seq[llm.Chunk]
}

// Options 生成器参数
type Options struct {
	TopicDelay   time.Duration
	CommentCount int
}

// Result 一批话题的处理结果
type Result struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	NoteIDs []string `json:"note_ids"`
}

// Generator 把待处理热点话题变成已发布笔记
type Generator struct {
	catalog      *catalog.Catalog
	writer       NoteWriter
	topics       TopicStore
	notes        NoteStore
	jobs         jobs.Dispatcher
	logger       *slog.Logger
	delay        time.Duration
	commentCount int
	sleep        func(ctx context.Context, d time.Duration) error
}

func New(c *catalog.Catalog, w NoteWriter, topics TopicStore, notes NoteStore, dispatcher jobs.Dispatcher, logger *slog.Logger, opts Options) *Generator {
	if opts.TopicDelay < 0 {
		opts.TopicDelay = 0
	}
	if opts.CommentCount <= 0 {
		opts.CommentCount = DefaultCommentCount
	}
	return &Generator{
		catalog:      c,
		writer:       w,
		topics:       topics,
		notes:        notes,
		jobs:         dispatcher,
		logger:       logging.Component(logger, "generator"),
		delay:        opts.TopicDelay,
		commentCount: opts.CommentCount,
		sleep:        sleepCtx,
	}
}

// WithSleep 替换话题间等待
func (g *Generator) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Generator {
	g.sleep = sleep
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GenerateNoteForTopic 生成单个话题的笔记，失败时话题标记为 failed 并返回 false
func (g *Generator) GenerateNoteForTopic(ctx context.Context, topic *model.HotTopic) (string, bool) {
	log := g.logger.With("topic_id", topic.ID, "title", topic.Title)
	log.Info("开始生成话题")

	if err := g.topics.UpdateStatus(ctx, topic.ID, model.TopicGenerating, "", ""); err != nil {
		log.Error("更新话题状态失败", "error", err)
		return "", false
	}

	note, err := g.generate(ctx, topic)
	if err != nil {
		log.Error("生成失败", "error", err)
		g.markFailed(ctx, topic.ID, err, log)
		return "", false
	}

	if err := g.topics.UpdateStatus(ctx, topic.ID, model.TopicPublished, note.ID, ""); err != nil {
		log.Error("发布话题失败", "note_id", note.ID, "error", err)
		g.markFailed(ctx, topic.ID, err, log)
		return "", false
	}

	g.submit(ctx, jobs.Job{Kind: jobs.KindCoverImage, NoteID: note.ID, Title: note.Title, Category: note.Category})
	g.submit(ctx, jobs.Job{Kind: jobs.KindComments, NoteID: note.ID, Count: g.commentCount})

	log.Info("话题生成完成", "note_id", note.ID)
	return note.ID, true
}

// markFailed 进入 generating 之后的所有失败都走这里
// 使用不可取消的 ctx，保证关停时话题也能落到终态
func (g *Generator) markFailed(ctx context.Context, topicID string, cause error, log *slog.Logger) {
	if err := g.topics.UpdateStatus(context.WithoutCancel(ctx), topicID, model.TopicFailed, "", cause.Error()); err != nil {
		log.Error("标记话题失败状态失败", "error", err)
	}
}

func (g *Generator) generate(ctx context.Context, topic *model.HotTopic) (*model.Note, error) {
	creator, err := g.catalog.CreatorForCategory(topic.Category)
	if err != nil {
		return nil, err
	}
	categoryID, _ := g.catalog.CanonicalCategory(topic.Category)

	raw, err := llm.Collect(g.writer.GenerateNoteStream(ctx, creator.ID, topic.Title, writer.Options{
		CategoryID:        categoryID,
		IncludeReferences: true,
	}))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyGeneration
	}

	parsed := writer.ParseNoteContent(raw)
	note := &model.Note{
		CreatorID: creator.ID,
		Title:     parsed.Title,
		Content:   parsed.Content,
		Category:  creator.Category,
		Tags:      parsed.Tags,
		Status:    model.NotePublished,
	}
	if err := g.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// submit 附加任务只记录提交失败，不影响话题状态
func (g *Generator) submit(ctx context.Context, job jobs.Job) {
	if g.jobs == nil {
		return
	}
	if err := g.jobs.Submit(ctx, job); err != nil {
		g.logger.Warn("提交附加任务失败", "kind", job.Kind, "note_id", job.NoteID, "error", err)
	}
}

// ProcessPendingTopics 按热度顺序逐个处理，相邻话题之间固定间隔
func (g *Generator) ProcessPendingTopics(ctx context.Context, limit int) (Result, error) {
	result := Result{NoteIDs: []string{}}

	topics, err := g.topics.Pending(ctx, limit)
	if err != nil {
		return result, err
	}
	g.logger.Info("找到待处理话题", "count", len(topics))

	for i, topic := range topics {
		if noteID, ok := g.GenerateNoteForTopic(ctx, topic); ok {
			result.Success++
			result.NoteIDs = append(result.NoteIDs, noteID)
		} else {
			result.Failed++
		}

		if i == len(topics)-1 {
			break
		}
		if err := g.sleep(ctx, g.delay); err != nil {
			g.logger.Warn("批量处理被中断", "error", err)
			break
		}
	}

	g.logger.Info("批量处理完成", "success", result.Success, "failed", result.Failed)
	return result, nil
}

// Stats 自动生成统计
func (g *Generator) Stats(ctx context.Context) (*database.GenerateStats, error) {
	return g.topics.GenerateStats(ctx)
}
