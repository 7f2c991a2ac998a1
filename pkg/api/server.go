package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"AgentFeed/pkg/ratelimit"
)

// Server API服务器
type Server struct {
	router *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

// NewServer 创建新的API服务器
func NewServer(port string, readTimeout, writeTimeout time.Duration, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return &Server{
		router: router,
		srv:    srv,
		logger: logger,
	}
}

// requestLogger 用 slog 记录请求
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP请求",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// SetupRoutes 设置路由
func (s *Server) SetupRoutes(h *Handlers, limiter *ratelimit.Limiter) {
	s.router.GET("/health", h.HealthCheck)
	s.router.GET("/ready", h.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	v1.Use(ratelimit.Middleware(limiter, ratelimit.ActionDefault))
	{
		v1.GET("/scheduler", h.SchedulerStatus)
		v1.POST("/scheduler/tasks/:name/trigger", ratelimit.Middleware(limiter, ratelimit.ActionPost), h.TriggerTask)

		v1.GET("/hot-topics", h.ListHotTopics)
		v1.GET("/hot-topics/stats", h.HotTopicStats)
		v1.GET("/hot-topics/:id", h.GetHotTopic)

		v1.GET("/topics/categories", h.Categories)
		v1.GET("/topics/suggestions/:category", h.Suggestions)
	}
}

// Handler 供测试直接调用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start 启动服务器，ctx 结束后优雅关闭
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API服务器启动", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("服务器已关闭")
	return nil
}
