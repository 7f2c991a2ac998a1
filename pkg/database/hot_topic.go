// pkg/database/hot_topic.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"AgentFeed/pkg/model"
)

const (
	DefaultSource = "xiaohongshu"
	dedupWindow   = 24 * time.Hour
	expiryAge     = 7 * 24 * time.Hour
	statsWindow   = 24 * time.Hour
)

var (
	ErrTopicNotFound       = errors.New("热点话题不存在")
	ErrInvalidTransition   = errors.New("非法的状态迁移")
	ErrMissingNoteID       = errors.New("发布状态必须关联笔记ID")
	ErrMissingErrorMessage = errors.New("失败状态必须记录错误信息")
)

type HotTopicDB struct {
	db  *gorm.DB
	now func() time.Time
}

// Ingest 去重后写入候选话题，返回新增数量
// 24小时内出现过相同标题的候选会被跳过，rank 为候选在批次中的位置
func (h *HotTopicDB) Ingest(ctx context.Context, candidates []model.TopicCandidate) (int, error) {
	now := h.now()
	inserted := 0

	for i, c := range candidates {
		var count int64
		err := h.db.WithContext(ctx).Model(&model.HotTopic{}).
			Where("title = ? AND created_at > ?", c.Title, now.Add(-dedupWindow)).
			Count(&count).Error
		if err != nil {
			return inserted, fmt.Errorf("查询重复话题失败: %w", err)
		}
		if count > 0 {
			continue
		}

		source := c.Source
		if source == "" {
			source = DefaultSource
		}
		topic := &model.HotTopic{
			Title:     c.Title,
			Source:    source,
			Category:  c.Category,
			HeatScore: c.HeatScore,
			Rank:      i + 1,
			Status:    model.TopicPending,
			CreatedAt: now,
		}
		if err := h.db.WithContext(ctx).Create(topic).Error; err != nil {
			return inserted, fmt.Errorf("保存热点话题失败: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// Pending 待处理话题，热度优先，其次最新
func (h *HotTopicDB) Pending(ctx context.Context, limit int) ([]*model.HotTopic, error) {
	var topics []*model.HotTopic
	err := h.db.WithContext(ctx).
		Where("status = ?", model.TopicPending).
		Order("heat_score DESC, created_at DESC").
		Limit(limit).
		Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("查询待处理话题失败: %w", err)
	}
	return topics, nil
}

func (h *HotTopicDB) Get(ctx context.Context, id string) (*model.HotTopic, error) {
	var topic model.HotTopic
	err := h.db.WithContext(ctx).First(&topic, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("获取热点话题失败: %w", err)
	}
	return &topic, nil
}

// UpdateStatus 推进话题状态
// published 需要 noteID，failed 需要 errMsg，二者都会记录 processed_at；generating 只改状态
func (h *HotTopicDB) UpdateStatus(ctx context.Context, id string, status model.TopicStatus, noteID, errMsg string) error {
	current, err := h.Get(ctx, id)
	if err != nil {
		return err
	}
	if !current.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updates := map[string]interface{}{"status": status}
	switch status {
	case model.TopicPublished:
		if noteID == "" {
			return ErrMissingNoteID
		}
		updates["note_id"] = noteID
		updates["processed_at"] = h.now()
	case model.TopicFailed:
		if errMsg == "" {
			return ErrMissingErrorMessage
		}
		updates["error_message"] = errMsg
		updates["processed_at"] = h.now()
	}

	// 以旧状态作为条件，避免并发覆盖
	result := h.db.WithContext(ctx).Model(&model.HotTopic{}).
		Where("id = ? AND status = ?", id, current.Status).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新话题状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s 状态已被修改", ErrInvalidTransition, id)
	}
	return nil
}

// CleanExpired 删除7天前且未发布的话题
func (h *HotTopicDB) CleanExpired(ctx context.Context) (int64, error) {
	result := h.db.WithContext(ctx).
		Where("created_at < ? AND status <> ?", h.now().Add(-expiryAge), model.TopicPublished).
		Delete(&model.HotTopic{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理过期话题失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListFilter 列表筛选条件
type ListFilter struct {
	Status   model.TopicStatus
	Category string
	Limit    int
	Offset   int
}

// List 按条件分页查询话题
func (h *HotTopicDB) List(ctx context.Context, f ListFilter) ([]*model.HotTopic, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := sq.Select("*").From(model.HotTopic{}.TableName())
	if f.Status != "" {
		query = query.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.Category != "" {
		query = query.Where(sq.Eq{"category": f.Category})
	}
	query = query.OrderBy("heat_score DESC", "created_at DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建查询失败: %w", err)
	}

	var topics []*model.HotTopic
	if err := h.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&topics).Error; err != nil {
		return nil, fmt.Errorf("查询话题列表失败: %w", err)
	}
	return topics, nil
}

// TopicStats 最近24小时的话题统计
type TopicStats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Generating int64 `json:"generating"`
	Published  int64 `json:"published"`
	Failed     int64 `json:"failed"`
}

func countStatus(status model.TopicStatus, alias string) string {
	return fmt.Sprintf("COALESCE(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END), 0) AS %s", status, alias)
}

// Stats 统计最近24小时创建的话题
func (h *HotTopicDB) Stats(ctx context.Context) (*TopicStats, error) {
	sqlStr, args, err := sq.Select(
		"COUNT(*) AS total",
		countStatus(model.TopicPending, "pending"),
		countStatus(model.TopicGenerating, "generating"),
		countStatus(model.TopicPublished, "published"),
		countStatus(model.TopicFailed, "failed"),
	).
		From(model.HotTopic{}.TableName()).
		Where(sq.Gt{"created_at": h.now().Add(-statsWindow)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建统计查询失败: %w", err)
	}

	var stats TopicStats
	if err := h.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("统计热点话题失败: %w", err)
	}
	return &stats, nil
}

// GenerateStats 自动生成统计
type GenerateStats struct {
	TodayGenerated int64 `json:"today_generated"`
	TodayFailed    int64 `json:"today_failed"`
	TotalGenerated int64 `json:"total_generated"`
}

// GenerateStats 最近24小时处理结果与累计发布数
func (h *HotTopicDB) GenerateStats(ctx context.Context) (*GenerateStats, error) {
	sqlStr, args, err := sq.Select(
		countStatus(model.TopicPublished, "today_generated"),
		countStatus(model.TopicFailed, "today_failed"),
	).
		From(model.HotTopic{}.TableName()).
		Where(sq.Gt{"processed_at": h.now().Add(-statsWindow)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("构建统计查询失败: %w", err)
	}

	var stats GenerateStats
	if err := h.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("统计生成结果失败: %w", err)
	}

	if err := h.db.WithContext(ctx).Model(&model.HotTopic{}).
		Where("status = ?", model.TopicPublished).
		Count(&stats.TotalGenerated).Error; err != nil {
		return nil, fmt.Errorf("统计累计发布数失败: %w", err)
	}
	return &stats, nil
}
