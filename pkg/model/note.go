// pkg/model/note.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NoteStatus string

const (
	NoteDraft     NoteStatus = "draft"
	NotePublished NoteStatus = "published"
)

// Note 生成的笔记
type Note struct {
	ID            string                      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID     string                      `gorm:"type:varchar(50);not null;index" json:"creator_id"`
	Title         string                      `gorm:"not null" json:"title"`
	Content       string                      `gorm:"type:text" json:"content"`
	Category      string                      `gorm:"type:varchar(50);index" json:"category"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
	CoverImage    *string                     `json:"cover_image,omitempty"`
	Images        datatypes.JSONSlice[string] `json:"images"`
	Status        NoteStatus                  `gorm:"type:varchar(20);default:'published';index" json:"status"`
	Likes         int                         `gorm:"default:0" json:"likes"`
	Collects      int                         `gorm:"default:0" json:"collects"`
	CommentsCount int                         `gorm:"default:0" json:"comments_count"`
	Views         int                         `gorm:"default:0" json:"views"`
	CreatedAt     time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Tags == nil {
		n.Tags = datatypes.JSONSlice[string]{}
	}
	if n.Images == nil {
		n.Images = datatypes.JSONSlice[string]{}
	}
	return nil
}

func (Note) TableName() string {
	return "notes"
}

// Comment 笔记评论，IsAI 标记为合成评论
type Comment struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	NoteID     string    `gorm:"type:uuid;not null;index" json:"note_id"`
	UserName   string    `gorm:"type:varchar(100)" json:"user_name"`
	UserAvatar string    `json:"user_avatar"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsAI       bool      `gorm:"default:false;index" json:"is_ai"`
	Likes      int       `gorm:"default:0" json:"likes"`
	ParentID   *string   `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (Comment) TableName() string {
	return "comments"
}
