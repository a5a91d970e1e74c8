package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/sessionkeeper/internal/app"
	"github.com/florianilch/sessionkeeper/internal/observability"
)

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "keep the session refreshed and serve the local proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "proxy listen host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "proxy listen port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.IntFlag{
				Name:  "refresh--interval-minutes",
				Usage: "session lifetime before a scheduled refresh",
				Value: app.DefaultConfigRefreshInterval,
			},
			&cli.IntFlag{
				Name:  "refresh--keepalive-minutes",
				Usage: "keepalive probe interval, 0 disables",
				Value: app.DefaultConfigKeepaliveInterval,
			},
		},
		Action: startAction,
	}
}

func startAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.LogExport)
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
