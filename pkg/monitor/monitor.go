package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"

	checkTimeout = 5 * time.Second
)

// CheckFunc 组件探活
type CheckFunc func(ctx context.Context) error

// HealthStatus 健康状态
type HealthStatus struct {
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	Critical    bool      `json:"critical"`
	LastChecked time.Time `json:"last_checked"`
	Message     string    `json:"message,omitempty"`
}

type component struct {
	status HealthStatus
	check  CheckFunc
}

// Monitor 监控系统
type Monitor struct {
	components map[string]*component
	order      []string
	mutex      sync.RWMutex
	now        func() time.Time
	logger     *slog.Logger
}

// NewMonitor 创建新的监控系统
func NewMonitor(logger *slog.Logger) *Monitor {
	return &Monitor{
		components: make(map[string]*component),
		now:        time.Now,
		logger:     logger,
	}
}

// WithClock 替换时钟
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// RegisterComponent 注册组件
// critical 组件失败时服务不可用，非关键组件失败只标记为 degraded
func (m *Monitor) RegisterComponent(name string, critical bool, check CheckFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.components[name]; !exists {
		m.order = append(m.order, name)
	}
	m.components[name] = &component{
		status: HealthStatus{
			Component:   name,
			Status:      StatusUnknown,
			Critical:    critical,
			LastChecked: m.now(),
		},
		check: check,
	}
}

// UpdateStatus 更新组件状态，状态变化时记录日志
func (m *Monitor) UpdateStatus(name, status, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c, exists := m.components[name]
	if !exists {
		c = &component{status: HealthStatus{Component: name}}
		m.components[name] = c
		m.order = append(m.order, name)
	}

	old := c.status.Status
	c.status.Status = status
	c.status.LastChecked = m.now()
	c.status.Message = message

	if old == status {
		return
	}
	if status == StatusHealthy {
		m.logger.Info("组件恢复正常", "component", name, "previous", old)
		return
	}
	m.logger.Warn("组件状态异常", "component", name, "status", status, "message", message)
}

// GetStatus 获取组件状态
func (m *Monitor) GetStatus(name string) *HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if c, exists := m.components[name]; exists {
		st := c.status
		return &st
	}
	return nil
}

// GetAllStatus 按注册顺序返回所有组件状态
func (m *Monitor) GetAllStatus() []HealthStatus {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	statuses := make([]HealthStatus, 0, len(m.order))
	for _, name := range m.order {
		statuses = append(statuses, m.components[name].status)
	}
	return statuses
}

// CheckAll 依次探活所有组件，没有关键组件失败时返回 true
func (m *Monitor) CheckAll(ctx context.Context) bool {
	m.mutex.RLock()
	type target struct {
		name     string
		critical bool
		check    CheckFunc
	}
	targets := make([]target, 0, len(m.order))
	for _, name := range m.order {
		c := m.components[name]
		if c.check != nil {
			targets = append(targets, target{name, c.status.Critical, c.check})
		}
	}
	m.mutex.RUnlock()

	ready := true
	for _, t := range targets {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := t.check(checkCtx)
		cancel()

		switch {
		case err == nil:
			m.UpdateStatus(t.name, StatusHealthy, "")
		case t.critical:
			ready = false
			m.UpdateStatus(t.name, StatusUnhealthy, err.Error())
		default:
			m.UpdateStatus(t.name, StatusDegraded, err.Error())
		}
	}
	return ready
}
