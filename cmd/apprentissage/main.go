package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/interfaces/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	// Inject build-time variables into the cli package.
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// An interrupted import stops between rows and still prints its report.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute already printed the error.
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
