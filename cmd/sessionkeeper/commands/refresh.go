package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/sessionkeeper/internal/app"
	"github.com/florianilch/sessionkeeper/internal/observability"
)

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:   "refresh",
		Usage:  "log in once and update the session cache",
		Action: refreshAction,
	}
}

func refreshAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.LogExport)
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	b, err := app.Refresh(ctx, cfg)
	if err != nil {
		return err
	}

	expires := "never"
	if b.ExpiresAt != nil {
		expires = b.ExpiresAt.Format(time.RFC3339)
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "session cache updated (%s), next refresh due %s\n", cfg.Cache.Storage, expires)
	return err
}
