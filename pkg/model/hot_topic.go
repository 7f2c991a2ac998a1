// pkg/model/hot_topic.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TopicStatus 热点话题状态
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicGenerating TopicStatus = "generating"
	TopicPublished  TopicStatus = "published"
	TopicFailed     TopicStatus = "failed"
)

// stage 状态所处阶段，只能向前推进
func (s TopicStatus) stage() int {
	switch s {
	case TopicPending:
		return 0
	case TopicGenerating:
		return 1
	case TopicPublished, TopicFailed:
		return 2
	default:
		return -1
	}
}

// Valid 是否为已知状态
func (s TopicStatus) Valid() bool {
	return s.stage() >= 0
}

// Terminal 是否为终态
func (s TopicStatus) Terminal() bool {
	return s.stage() == 2
}

// CanTransitionTo 判断状态迁移是否合法
// 只允许 pending -> generating -> published/failed 逐级推进
func (s TopicStatus) CanTransitionTo(next TopicStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.stage() == s.stage()+1
}

// HotTopic 热点话题
type HotTopic struct {
	ID           string      `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string      `gorm:"not null;index" json:"title"`
	Source       string      `gorm:"type:varchar(50)" json:"source"`
	Category     string      `gorm:"type:varchar(50);index" json:"category"`
	HeatScore    int         `gorm:"default:0;index" json:"heat_score"`
	Rank         int         `json:"rank"`
	Status       TopicStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	NoteID       *string     `gorm:"type:uuid" json:"note_id,omitempty"`
	ErrorMessage *string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	ProcessedAt  *time.Time  `json:"processed_at,omitempty"`
}

func (h *HotTopic) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.Status == "" {
		h.Status = TopicPending
	}
	return nil
}

func (HotTopic) TableName() string {
	return "hot_topics"
}

// TopicCandidate 抓取到的候选话题
type TopicCandidate struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	HeatScore int    `json:"heat_score"`
	Source    string `json:"source"`
}
