// Package main is the entrypoint for the accounts administration tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/weavefeed/accounts/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cli.Options{Version: version}); err != nil {
		stop()
		os.Exit(1)
	}
}
