// Package app wires config, storage, TMDb, Telegram and the scheduler
// together for the cmd/ entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/LJTian/MovieCast/internal/caption"
	"github.com/LJTian/MovieCast/internal/collector"
	"github.com/LJTian/MovieCast/internal/config"
	"github.com/LJTian/MovieCast/internal/publisher"
	"github.com/LJTian/MovieCast/internal/scheduler"
	"github.com/LJTian/MovieCast/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     storage.PostedStore
	Scheduler *scheduler.Scheduler

	redis *redis.Client
}

// NewLogger 构造带时间戳的根 logger
func NewLogger(level, name string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("app", name).Logger()
}

// Build 按配置创建所有依赖；cronSpec 为空时只用于单次执行
func Build(ctx context.Context, cfg *config.Config, cronSpec string, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	window, invalid := scheduler.ParseWindow(cfg.PublishHours, loc)
	if len(invalid) > 0 {
		logger.Warn().Strs("entries", invalid).Msg("ignoring malformed PUBLISH_HOURS entries")
	}
	if len(window.Hours()) == 0 {
		logger.Warn().Msg("publish window is empty, scheduled cycles will always skip")
	}

	a := &App{Config: cfg, Logger: logger}

	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.StoreDriver,
		File:        cfg.PostedFile,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.Store = store

	var lock scheduler.CycleLock
	if cfg.RedisAddr != "" {
		a.redis = storage.NewRedisClient(ctx, cfg.RedisAddr, logger)
		// 锁的 TTL 略长于周期超时
		lock = storage.NewRedisLock(a.redis, storage.DefaultLockKey, cfg.CycleTimeout+cfg.CycleTimeout/2)
	}

	client := collector.NewClient(collector.ClientOptions{
		APIKey:       cfg.TMDBAPIKey,
		BaseURL:      cfg.TMDBBaseURL,
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Language:     cfg.Language,
		Region:       cfg.Region,
	}, logger.With().Str("component", "tmdb").Logger())

	fetcher := &collector.TMDbFetcher{
		Client:    client,
		Source:    cfg.Source,
		MediaType: cfg.MediaType,
		Pages:     cfg.Pages,
		Limit:     cfg.CandidateLimit,
		Logger:    logger.With().Str("component", "tmdb").Logger(),
	}

	strategy, err := caption.ParseStrategy(cfg.TemplateStrategy)
	if err != nil {
		a.Close()
		return nil, err
	}
	formatter := caption.NewFormatter(caption.Options{
		Style:            cfg.CaptionStyle,
		Strategy:         strategy,
		Markup:           caption.ParseMarkup(cfg.ParseMode),
		OverviewMaxRunes: cfg.OverviewMaxRunes,
	})

	var sender publisher.Sender
	if cfg.DryRun {
		sender = publisher.LogSender{Logger: logger.With().Str("component", "dry-run").Logger()}
	} else {
		tg, err := publisher.NewTelegramSender(cfg.TelegramToken, cfg.ChannelID, logger.With().Str("component", "telegram").Logger())
		if err != nil {
			a.Close()
			return nil, err
		}
		sender = tg
	}

	deps := scheduler.Deps{
		Window:    window,
		Fetcher:   fetcher,
		Details:   client,
		Formatter: formatter,
		Sender:    sender,
		Store:     store,
		PosterURL: client.PosterURL,
		Lock:      lock,
		Count:     cfg.PublishCount,
		Timeout:   cfg.CycleTimeout,
		Logger:    logger.With().Str("component", "scheduler").Logger(),
		Now:       config.Now,
	}
	if cfg.IncludeTrailer {
		deps.Trailers = client
	}

	s, err := scheduler.New(cronSpec, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Scheduler = s

	logger.Info().
		Ints("publish_hours", window.Hours()).
		Str("timezone", loc.String()).
		Int("publish_count", cfg.PublishCount).
		Str("source", fetcher.Name()).
		Str("store", cfg.StoreDriver).
		Bool("dry_run", cfg.DryRun).
		Msg("app initialised")
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
