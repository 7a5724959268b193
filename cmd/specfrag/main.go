// Command specfrag caches OpenAPI specifications as fragments and resolves
// natural-language intents into API calls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()
	defer logger.Sync()

	cli.SetVersion(version)
	cli.SetServices(app.Services())

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
