package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"AgentFeed/pkg/api"
	"AgentFeed/pkg/app"
	"AgentFeed/pkg/config"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/scheduler"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format).With("app", cfg.App.Name)
	logger.Info("启动内容生成服务...", "env", cfg.App.Env, "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("初始化失败", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// 启动时立即抓取一次热点
	if err := a.Scheduler.Start(ctx, scheduler.TaskCrawl); err != nil {
		logger.Error("启动调度器失败", "error", err)
		return
	}
	defer a.Scheduler.Stop()

	handlers := api.NewHandlers(ctx, a.DB.HotTopics(), a.Scheduler, a.Catalog, a.Matcher, a.Monitor, logging.Component(logger, "api"))
	server := api.NewServer(cfg.API.Port, cfg.API.ReadTimeout, cfg.API.WriteTimeout, logging.Component(logger, "api"))
	server.SetupRoutes(handlers, a.Limiter)

	if err := server.Start(ctx); err != nil {
		logger.Error("API服务器异常退出", "error", err)
	}
	logger.Info("服务已停止")
}
