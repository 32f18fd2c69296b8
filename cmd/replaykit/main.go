// Package main provides the replaykit CLI.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	replaykitcmd "github.com/louisbranch/replaykit/internal/cmd/replaykit"
	platformcmd "github.com/louisbranch/replaykit/internal/platform/cmd"
	"github.com/louisbranch/replaykit/internal/platform/config"
)

func main() {
	cfg, err := replaykitcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceReplaykit, func(ctx context.Context) error {
		return replaykitcmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	}); err != nil {
		config.Exitf("Error: %v", err)
	}
}
