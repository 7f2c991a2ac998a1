// pkg/jobs/jobs.go
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AgentFeed/pkg/messaging"
)

// Kind 任务类型
type Kind string

const (
	KindCoverImage Kind = "cover-image"
	KindComments   Kind = "ai-comments"
)

// Job 笔记发布后的附加任务，失败只记录日志
type Job struct {
	Kind     Kind   `json:"kind"`
	NoteID   string `json:"note_id"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// Handler 任务处理函数
type Handler func(ctx context.Context, job Job) error

// Dispatcher 提交任务后立即返回，不等待执行结果
type Dispatcher interface {
	Submit(ctx context.Context, job Job) error
}

var ErrUnknownKind = errors.New("未注册的任务类型")

// Registry 任务类型到处理函数的映射
type Registry struct {
	handlers map[Kind]Handler
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{handlers: make(map[Kind]Handler), logger: logger}
}

func (r *Registry) Handle(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Run 执行任务并记录结果，panic 会被转成错误
func (r *Registry) Run(ctx context.Context, job Job) (err error) {
	h, ok := r.handlers[job.Kind]
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
		r.logger.Error("任务执行失败", "kind", job.Kind, "note_id", job.NoteID, "error", err)
		return err
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("任务 panic: %v", p)
		}
		if err != nil {
			r.logger.Warn("任务执行失败", "kind", job.Kind, "note_id", job.NoteID, "error", err)
			return
		}
		r.logger.Info("任务完成", "kind", job.Kind, "note_id", job.NoteID, "elapsed", time.Since(start))
	}()
	return h(ctx, job)
}

// Local 进程内 goroutine 执行
type Local struct {
	registry *Registry
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewLocal ctx 控制所有后台任务的生命周期，与提交方的 ctx 无关
func NewLocal(ctx context.Context, registry *Registry) *Local {
	return &Local{registry: registry, ctx: ctx}
}

func (l *Local) Submit(_ context.Context, job Job) error {
	if _, ok := l.registry.handlers[job.Kind]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.registry.Run(l.ctx, job)
	}()
	return nil
}

// Wait 等待已提交的任务结束
func (l *Local) Wait() {
	l.wg.Wait()
}

const consumerName = "agentfeed-jobs"

// Subject 任务对应的主题
func Subject(kind Kind) string {
	return "jobs." + string(kind)
}

// NATS 通过 JetStream 工作队列投递，同进程或其他进程消费
type NATS struct {
	client   *messaging.NATSClient
	registry *Registry
}

func NewNATS(client *messaging.NATSClient, registry *Registry) *NATS {
	return &NATS{client: client, registry: registry}
}

// Start 订阅任务流
func (n *NATS) Start() error {
	return n.client.Subscribe(messaging.JobsStream, consumerName, messaging.JobsSubject, n.handle)
}

func (n *NATS) Submit(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	return n.client.Publish(ctx, Subject(job.Kind), payload)
}

// handle 附加任务不重试，执行失败也确认消息
func (n *NATS) handle(ctx context.Context, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		n.registry.logger.Error("解析任务失败", "error", err)
		return nil
	}
	n.registry.Run(ctx, job)
	return nil
}
