// pkg/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/comments"
	"AgentFeed/pkg/config"
	"AgentFeed/pkg/crawler"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/generator"
	"AgentFeed/pkg/imagegen"
	"AgentFeed/pkg/jobs"
	"AgentFeed/pkg/llm"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/messaging"
	"AgentFeed/pkg/monitor"
	"AgentFeed/pkg/prompt"
	"AgentFeed/pkg/ratelimit"
	"AgentFeed/pkg/scheduler"
	"AgentFeed/pkg/writer"
)

// App 组装好的各组件
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *database.Database
	Catalog   *catalog.Catalog
	Matcher   *matcher.Matcher
	Generator *generator.Generator
	Crawler   *crawler.Crawler
	Limiter   *ratelimit.Limiter
	Scheduler *scheduler.Scheduler
	Monitor   *monitor.Monitor

	local  *jobs.Local
	nats   *messaging.NATSClient
	cancel context.CancelFunc
}

// New 按配置创建所有组件，ctx 结束时后台任务随之取消
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &App{Config: cfg, Logger: logger, cancel: cancel}

	cat, err := LoadCatalog(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	a.Catalog = cat
	a.Matcher = matcher.New(cat)

	db, err := database.Open(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		cancel()
		return nil, err
	}
	a.DB = db

	streamer := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	w := writer.New(cat, prompt.NewBuilder(cat, a.Matcher), streamer, logger).WithMaxTokens(cfg.LLM.MaxTokens)

	completer := newCompleter(cfg)

	images := imagegen.NewClient(imagegen.Options{
		BaseURL:      cfg.ComfyUI.BaseURL,
		UploadsDir:   cfg.ComfyUI.UploadsDir,
		Timeout:      cfg.ComfyUI.Timeout,
		PollInterval: cfg.ComfyUI.PollInterval,
	}, logging.Component(logger, "imagegen")).
		WithPromptWriter(imagegen.NewPromptWriter(completer, logging.Component(logger, "imagegen")))

	commentSvc := comments.NewService(completer, db.Notes(), db.Comments(), logging.Component(logger, "comments"))

	registry := jobs.NewRegistry(logging.Component(logger, "jobs"))
	generator.RegisterJobs(registry, images, db.Notes(), commentSvc, logging.Component(logger, "jobs"))

	dispatcher, err := a.dispatcher(ctx, registry)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Monitor = a.healthChecks(images)

	a.Generator = generator.New(cat, w, db.HotTopics(), db.Notes(), dispatcher, logger, generator.Options{
		TopicDelay:   cfg.Scheduler.TopicDelay,
		CommentCount: cfg.Comments.PerNote,
	})
	a.Crawler = crawler.New(db.HotTopics(), logging.Component(logger, "crawler"), crawler.FromConfig(cfg)...)
	a.Limiter = ratelimit.New(nil, logging.Component(logger, "ratelimit"))

	a.Scheduler = scheduler.NewScheduler(cfg.Scheduler.Tick, logger)
	if err := a.registerTasks(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newCompleter 评论与图片提示词的补全，与笔记生成走同一个接口地址
func newCompleter(cfg *config.Config) comments.Completer {
	if llm.IsDefaultBaseURL(cfg.LLM.BaseURL) {
		return comments.NewLLMKitCompleter(cfg.LLM.APIKey, cfg.Comments.Model, cfg.Comments.MaxTokens, cfg.Comments.Temperature)
	}
	client := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.Comments.Model, cfg.LLM.Timeout)
	return llm.NewCompleter(client, cfg.Comments.MaxTokens)
}

// LoadCatalog 配置了目录时从磁盘加载，否则使用内置目录
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Dir != "" {
		return catalog.LoadDir(cfg.Catalog.Dir)
	}
	return catalog.Default()
}

// dispatcher 启用 NATS 时走 JetStream，否则进程内执行
func (a *App) dispatcher(ctx context.Context, registry *jobs.Registry) (jobs.Dispatcher, error) {
	if !a.Config.NATS.Enabled {
		a.local = jobs.NewLocal(ctx, registry)
		return a.local, nil
	}

	client, err := messaging.NewNATSClient(a.Config.NATS.URL, logging.Component(a.Logger, "nats"))
	if err != nil {
		return nil, err
	}
	a.nats = client

	d := jobs.NewNATS(client, registry)
	if err := d.Start(); err != nil {
		return nil, fmt.Errorf("订阅任务流失败: %w", err)
	}
	return d, nil
}

// healthChecks 数据库与 NATS 为关键组件，ComfyUI 失败时封面任务会跳过
func (a *App) healthChecks(images *imagegen.Client) *monitor.Monitor {
	m := monitor.NewMonitor(logging.Component(a.Logger, "monitor"))
	m.RegisterComponent("database", true, a.DB.Ping)
	if a.nats != nil {
		m.RegisterComponent("nats", true, func(context.Context) error {
			if !a.nats.IsConnected() {
				return errors.New("NATS 连接已断开")
			}
			return nil
		})
	}
	m.RegisterComponent("comfyui", false, images.Health)
	return m
}

func (a *App) registerTasks() error {
	sc := a.Config.Scheduler
	tasks := []struct {
		name     string
		interval time.Duration
		handler  scheduler.Handler
	}{
		{scheduler.TaskCrawl, sc.CrawlInterval, a.crawl},
		{scheduler.TaskGenerate, sc.GenerateInterval, a.autoGenerate},
		{scheduler.TaskClean, sc.CleanInterval, a.cleanExpired},
		{scheduler.TaskSweepLimit, sc.SweepInterval, a.sweepLimits},
	}
	for _, t := range tasks {
		if err := a.Scheduler.Register(t.name, t.interval, t.handler); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) crawl(ctx context.Context) error {
	n, err := a.Crawler.Run(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("热点话题抓取完成", "inserted", n)
	return nil
}

func (a *App) autoGenerate(ctx context.Context) error {
	result, err := a.Generator.ProcessPendingTopics(ctx, a.Config.Scheduler.AutoGenerateLimit)
	if err != nil {
		return err
	}
	a.Logger.Info("自动生成完成", "success", result.Success, "failed", result.Failed)
	return nil
}

func (a *App) cleanExpired(ctx context.Context) error {
	n, err := a.DB.HotTopics().CleanExpired(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("过期话题清理完成", "deleted", n)
	return nil
}

func (a *App) sweepLimits(context.Context) error {
	if n := a.Limiter.Sweep(); n > 0 {
		a.Logger.Debug("限流窗口清理完成", "removed", n)
	}
	return nil
}

// Close 取消后台任务，等待进程内任务结束后关闭连接
func (a *App) Close() error {
	a.cancel()
	if a.local != nil {
		a.local.Wait()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
