package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/model"
	"AgentFeed/pkg/monitor"
	"AgentFeed/pkg/scheduler"
)

// TopicReader 热点话题查询
type TopicReader interface {
	Get(ctx context.Context, id string) (*model.HotTopic, error)
	List(ctx context.Context, f database.ListFilter) ([]*model.HotTopic, error)
	Stats(ctx context.Context) (*database.TopicStats, error)
	GenerateStats(ctx context.Context) (*database.GenerateStats, error)
}

// TaskRunner 调度器操作
type TaskRunner interface {
	Status() []scheduler.TaskStatus
	Has(name string) bool
	Trigger(ctx context.Context, name string) error
}

// HealthChecker 组件探活
type HealthChecker interface {
	CheckAll(ctx context.Context) bool
	GetAllStatus() []monitor.HealthStatus
}

// Handlers API处理程序
type Handlers struct {
	ctx     context.Context
	topics  TopicReader
	tasks   TaskRunner
	catalog *catalog.Catalog
	matcher *matcher.Matcher
	health  HealthChecker
	logger  *slog.Logger
}

// NewHandlers ctx 用于手动触发的后台任务
func NewHandlers(ctx context.Context, topics TopicReader, tasks TaskRunner, c *catalog.Catalog, m *matcher.Matcher, health HealthChecker, logger *slog.Logger) *Handlers {
	return &Handlers{
		ctx:     ctx,
		topics:  topics,
		tasks:   tasks,
		catalog: c,
		matcher: m,
		health:  health,
		logger:  logger,
	}
}

// HealthCheck 健康检查处理程序
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ReadinessCheck 关键组件全部可用才算就绪
func (h *Handlers) ReadinessCheck(c *gin.Context) {
	if !h.health.CheckAll(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "unavailable",
			"components": h.health.GetAllStatus(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": h.health.GetAllStatus(),
	})
}

// SchedulerStatus 调度器状态
func (h *Handlers) SchedulerStatus(c *gin.Context) {
	tasks := h.tasks.Status()
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks":     tasks,
		"available": names,
	})
}

// TriggerTask 手动触发任务，后台执行
func (h *Handlers) TriggerTask(c *gin.Context) {
	name := c.Param("name")
	if !h.tasks.Has(name) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "任务不存在: " + name,
		})
		return
	}
	for _, t := range h.tasks.Status() {
		if t.Name == name && t.IsRunning {
			c.JSON(http.StatusConflict, gin.H{
				"error": "任务正在运行: " + name,
			})
			return
		}
	}

	go func() {
		if err := h.tasks.Trigger(h.ctx, name); err != nil {
			h.logger.Warn("手动触发任务失败", "task", name, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "success",
		"message": "任务已触发",
		"task":    name,
	})
}

// ListHotTopics 热点话题列表
func (h *Handlers) ListHotTopics(c *gin.Context) {
	filter := database.ListFilter{
		Status:   model.TopicStatus(c.Query("status")),
		Category: c.Query("category"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "无效的状态: " + string(filter.Status),
		})
		return
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	topics, err := h.topics.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取热点话题失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": topics,
	})
}

// GetHotTopic 单个热点话题
func (h *Handlers) GetHotTopic(c *gin.Context) {
	topic, err := h.topics.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrTopicNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取热点话题失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": topic,
	})
}

// HotTopicStats 最近24小时话题统计与生成统计
func (h *Handlers) HotTopicStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.topics.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "统计热点话题失败: " + err.Error(),
		})
		return
	}
	gen, err := h.topics.GenerateStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "统计生成结果失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"topics":   stats,
		"generate": gen,
	})
}

// Categories 板块列表
func (h *Handlers) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data":   h.matcher.Categories(),
		"season": h.matcher.Season(),
	})
}

// Suggestions 板块的话题建议，支持中文别名
func (h *Handlers) Suggestions(c *gin.Context) {
	id, ok := h.catalog.CanonicalCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "板块不存在: " + c.Param("category"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"category": id,
		"data":     h.matcher.Suggest(id),
	})
}
