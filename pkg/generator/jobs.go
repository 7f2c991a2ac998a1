// pkg/generator/jobs.go
package generator

import (
	"context"
	"errors"
	"log/slog"

	"AgentFeed/pkg/imagegen"
	"AgentFeed/pkg/jobs"
)

// ImageGenerator 封面图生成
type ImageGenerator interface {
	Generate(ctx context.Context, title, category string, kind imagegen.ImageType) (string, error)
}

// CoverStore 写入封面图
type CoverStore interface {
	SetCoverImage(ctx context.Context, id, url string) error
}

// CommentAdder 合成评论
type CommentAdder interface {
	AddAIComments(ctx context.Context, noteID string, target int) (int, error)
}

// RegisterJobs 注册封面图和评论两类附加任务
func RegisterJobs(reg *jobs.Registry, images ImageGenerator, covers CoverStore, comments CommentAdder, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	reg.Handle(jobs.KindCoverImage, func(ctx context.Context, job jobs.Job) error {
		url, err := images.Generate(ctx, job.Title, job.Category, imagegen.ImageCover)
		if errors.Is(err, imagegen.ErrUnavailable) {
			logger.Info("图片服务不可用，跳过封面生成", "note_id", job.NoteID)
			return nil
		}
		if err != nil {
			return err
		}
		return covers.SetCoverImage(ctx, job.NoteID, url)
	})

	reg.Handle(jobs.KindComments, func(ctx context.Context, job jobs.Job) error {
		added, err := comments.AddAIComments(ctx, job.NoteID, job.Count)
		if err != nil {
			return err
		}
		logger.Info("评论生成完成", "note_id", job.NoteID, "added", added)
		return nil
	})
}
