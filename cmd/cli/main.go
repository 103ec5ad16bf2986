// Command authctl administers users of the auth core from a terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/shopscale-auth/internal/cli"
	"github.com/dmitrijs2005/shopscale-auth/internal/flagx"
	"github.com/dmitrijs2005/shopscale-auth/internal/logging"
	"github.com/dmitrijs2005/shopscale-auth/internal/server"
	"github.com/dmitrijs2005/shopscale-auth/internal/server/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn)
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer app.Close()

	args := flagx.StripArgs(os.Args[1:], config.Flags)
	if err := cli.NewApp(app.Auth(), os.Stdin, os.Stdout).Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
