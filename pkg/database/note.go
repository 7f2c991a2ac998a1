// pkg/database/note.go
package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"AgentFeed/pkg/model"
)

var ErrNoteNotFound = errors.New("笔记不存在")

type NoteDB struct {
	db *gorm.DB
}

func (n *NoteDB) Create(ctx context.Context, note *model.Note) error {
	if note.Status == "" {
		note.Status = model.NotePublished
	}
	if err := n.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("保存笔记失败: %w", err)
	}
	return nil
}

func (n *NoteDB) Get(ctx context.Context, id string) (*model.Note, error) {
	var note model.Note
	if err := n.db.WithContext(ctx).First(&note, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("获取笔记失败: %w", err)
	}
	return &note, nil
}

// SetCoverImage 写入封面图，同时记入图片列表
func (n *NoteDB) SetCoverImage(ctx context.Context, id, url string) error {
	return n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var note model.Note
		if err := tx.First(&note, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoteNotFound
			}
			return fmt.Errorf("获取笔记失败: %w", err)
		}

		images := append(note.Images, url)
		if err := tx.Model(&model.Note{}).Where("id = ?", id).
			Updates(map[string]interface{}{"cover_image": url, "images": images}).Error; err != nil {
			return fmt.Errorf("更新封面图失败: %w", err)
		}
		return nil
	})
}

// RefreshCommentCount 按评论表重算评论数
func (n *NoteDB) RefreshCommentCount(ctx context.Context, id string) (int64, error) {
	var count int64
	if err := n.db.WithContext(ctx).Model(&model.Comment{}).
		Where("note_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计评论数失败: %w", err)
	}
	if err := n.db.WithContext(ctx).Model(&model.Note{}).
		Where("id = ?", id).
		Update("comments_count", count).Error; err != nil {
		return 0, fmt.Errorf("更新评论数失败: %w", err)
	}
	return count, nil
}

func (n *NoteDB) GetRecent(ctx context.Context, limit int) ([]*model.Note, error) {
	var notes []*model.Note
	err := n.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("查询最新笔记失败: %w", err)
	}
	return notes, nil
}
