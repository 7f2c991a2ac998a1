// pkg/database/comment.go
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"AgentFeed/pkg/model"
)

type CommentDB struct {
	db *gorm.DB
}

func (c *CommentDB) Create(ctx context.Context, comment *model.Comment) error {
	if err := c.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("保存评论失败: %w", err)
	}
	return nil
}

func (c *CommentDB) ListByNote(ctx context.Context, noteID string) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := c.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("查询笔记评论失败: %w", err)
	}
	return comments, nil
}
