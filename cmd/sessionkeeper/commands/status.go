package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/sessionkeeper/internal/app"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "report whether the cached session is present and still fresh",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print status as JSON",
			},
		},
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := app.InspectCache(ctx, cfg, time.Now())
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return printStatus(out, st)
}

// printStatus renders a cache status for humans.
func printStatus(w io.Writer, st app.CacheStatus) error {
	var err error
	switch {
	case st.Error != "":
		_, err = fmt.Fprintf(w, "cache (%s): unreadable: %s\n", st.Storage, st.Error)
	case !st.Present:
		_, err = fmt.Fprintf(w, "cache (%s): no session stored\n", st.Storage)
	default:
		state := "fresh"
		if st.Expired {
			state = "expired"
		}
		expires := "no expiry"
		if st.ExpiresAt != nil {
			expires = "expires " + st.ExpiresAt.Format(time.RFC3339)
		}
		_, err = fmt.Fprintf(w, "cache (%s): %s, refreshed %s, %s\n",
			st.Storage, state, st.RefreshedAt.Format(time.RFC3339), expires)
	}
	return err
}
