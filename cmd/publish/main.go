package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/MovieCast/internal/app"
	"github.com/LJTian/MovieCast/internal/config"
	"github.com/spf13/cobra"
)

// 只执行一次发布周期的命令行入口：适合由外部 cron / systemd timer 触发
func main() {
	var (
		force  bool
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:           "publish",
		Short:         "Run one TMDb -> Telegram publish cycle and exit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if dryRun {
				cfg.DryRun = true
			}
			logger := app.NewLogger(cfg.LogLevel, "moviecast-publish")

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.CycleTimeout)
			defer cancel()

			a, err := app.Build(ctx, cfg, "", logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rep, err := a.Scheduler.RunOnce(ctx, force)
			if err != nil {
				return fmt.Errorf("publish cycle: %w", err)
			}
			if rep.Skipped {
				logger.Info().Str("reason", rep.Reason).Int("hour", rep.Hour).Msg("nothing to do")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore PUBLISH_HOURS and publish now")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log captions instead of sending them")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
