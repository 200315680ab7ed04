package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/MovieCast/internal/api"
	"github.com/LJTian/MovieCast/internal/app"
	"github.com/LJTian/MovieCast/internal/config"
	"github.com/gin-gonic/gin"
)

// 常驻进程：按 CRON_SPEC 触发发布周期，并提供状态 API
func main() {
	cfg := config.Load()
	logger := app.NewLogger(cfg.LogLevel, "moviecast")

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(shutdownCtx, cfg, cfg.CronSpec, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init app failed")
	}
	defer func() { _ = a.Close() }()

	// 启动后立即检查一次，之后按 cron 触发
	a.Scheduler.Start(cfg.RunOnStart)
	logger.Info().Str("cron", cfg.CronSpec).Bool("run_on_start", cfg.RunOnStart).Msg("scheduler started")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	// 若配置了访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}
	api.NewServer(a.Store, a.Scheduler, cfg.CycleTimeout).RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("starting api server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	a.Scheduler.Stop(ctx)
	logger.Info().Msg("bye")
}
