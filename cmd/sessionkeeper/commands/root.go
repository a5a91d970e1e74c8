package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/sessionkeeper/internal/app"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "sessionkeeper",
		Usage: "Keeps a web dashboard session logged in and serves its tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file merged into the environment before loading config",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-export",
				Usage: "log export (none|stdout|otlp-http|otlp-grpc)",
				Value: string(app.DefaultConfigLogExport),
			},
			&cli.StringFlag{
				Name:  "dashboard--base-url",
				Usage: "dashboard base URL",
				Value: app.DefaultConfigDashboardBaseURL,
			},
			&cli.StringFlag{
				Name:  "cache--file",
				Usage: "session cache file (default: user config dir)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, loadEnvFile(cmd.String("env-file"))
		},
		Commands: []*cli.Command{
			startCommand(),
			refreshCommand(),
			statusCommand(),
		},
	}

	return cmd.Run(ctx, args)
}
