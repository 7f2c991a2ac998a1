package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"AgentFeed/pkg/logging"
)

const (
	TaskCrawl      = "crawl-hot-topics"
	TaskGenerate   = "auto-generate"
	TaskClean      = "clean-expired"
	TaskSweepLimit = "sweep-rate-limits"

	DefaultTick = 60 * time.Second
)

var (
	ErrTaskNotFound  = errors.New("任务不存在")
	ErrTaskRunning   = errors.New("任务正在运行")
	ErrTaskDuplicate = errors.New("任务已注册")
)

// Handler 任务处理函数
type Handler func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	running  bool
	handler  Handler
}

// TaskStatus 任务状态快照
type TaskStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	IsRunning bool       `json:"is_running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// Scheduler 定时任务调度器，同名任务不会并发执行
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	order  []string
	cron   *cron.Cron
	tick   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewScheduler 创建任务调度器
func NewScheduler(tick time.Duration, logger *slog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	logger = logging.Component(logger, "scheduler")
	cronLogger := logging.NewCronLogger(logger)
	return &Scheduler{
		tasks:  make(map[string]*task),
		cron:   cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		tick:   tick,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock 替换时钟
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Register 注册任务，按注册顺序执行
func (s *Scheduler) Register(name string, interval time.Duration, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%w: %s", ErrTaskDuplicate, name)
	}
	s.tasks[name] = &task{name: name, interval: interval, handler: handler}
	s.order = append(s.order, name)
	s.logger.Info("注册任务", "task", name, "interval", interval)
	return nil
}

// Tick 依次检查所有任务，到期且未在运行的任务会被执行
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		s.runTask(ctx, name)
	}
}

// runTask 先置运行标记和上次运行时间再执行，结束后无论成败都清除运行标记
func (s *Scheduler) runTask(ctx context.Context, name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok || t.running {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if now.Sub(t.lastRun) < t.interval {
		s.mu.Unlock()
		return false
	}
	t.running = true
	t.lastRun = now
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		t.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("执行任务", "task", name)
	start := time.Now()
	if err := s.invoke(ctx, t); err != nil {
		s.logger.Error("任务执行失败", "task", name, "error", err)
		return true
	}
	s.logger.Info("任务完成", "task", name, "elapsed", time.Since(start))
	return true
}

func (s *Scheduler) invoke(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.handler(ctx)
}

// Trigger 清空上次运行时间后立即执行
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	if t.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	t.lastRun = time.Time{}
	s.mu.Unlock()

	if !s.runTask(ctx, name) {
		return fmt.Errorf("%w: %s", ErrTaskRunning, name)
	}
	return nil
}

// Has 任务是否已注册
func (s *Scheduler) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Status 返回所有任务的状态
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.order))
	for _, name := range s.order {
		t := s.tasks[name]
		st := TaskStatus{Name: name, Interval: t.interval.String(), IsRunning: t.running}
		if !t.lastRun.IsZero() {
			last := t.lastRun
			next := last.Add(t.interval)
			st.LastRun, st.NextRun = &last, &next
		}
		out = append(out, st)
	}
	return out
}

// Start 启动定时器，immediate 中的任务立即在后台执行一次
func (s *Scheduler) Start(ctx context.Context, immediate ...string) error {
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.tick), func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("注册定时器失败: %w", err)
	}
	s.cron.Start()
	s.logger.Info("调度器已启动", "tick", s.tick)

	for _, name := range immediate {
		go func() {
			if err := s.Trigger(ctx, name); err != nil {
				s.logger.Warn("启动时执行任务失败", "task", name, "error", err)
			}
		}()
	}
	return nil
}

// Stop 停止定时器并等待正在执行的 tick 结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("调度器已停止")
}
