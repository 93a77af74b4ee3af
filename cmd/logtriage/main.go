package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/olegiv/logtriage-go/internal/cli"
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Cancel in-flight reads on Ctrl+C or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := cli.BuildInfo{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
	}
	return cli.Execute(ctx, info, os.Args[1:], os.Stdout, os.Stderr)
}
