package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/specfrag-cli/internal/adapters/driving/watcher"
	"github.com/custodia-labs/specfrag-cli/internal/logger"
)

var (
	serveWatchDir    string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run background maintenance",
	Long: `Runs the long-lived parts of specfrag until interrupted:

  - the scheduler, which deletes never-used fragments and refreshes
    imported specifications on their configured intervals
  - the spec directory watcher, when watch.dir or --watch is set
  - the Prometheus metrics endpoint, when metrics.addr or --metrics is set`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "spec directory to watch (overrides watch.dir)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics", "", "metrics listen address (overrides metrics.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	watchDir, metricsAddr := serveWatchDir, serveMetricsAddr
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			if watchDir == "" {
				watchDir = s.WatchDir
			}
			if metricsAddr == "" {
				metricsAddr = s.MetricsAddr
			}
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	if watchDir != "" {
		if specService == nil {
			return errors.New("spec service not configured")
		}
		w := watcher.New(specService, logger.Named("watcher"))
		g.Go(func() error {
			return w.Run(ctx, watchDir)
		})
		cmd.Printf("Watching %s\n", watchDir)
	}

	if metricsAddr != "" {
		if metricsServer == nil {
			return errors.New("metrics not configured")
		}
		g.Go(func() error {
			return metricsServer.Serve(ctx, metricsAddr)
		})
		cmd.Printf("Metrics on http://%s/metrics\n", metricsAddr)
	}

	cmd.Println("specfrag serve running, press Ctrl+C to stop")
	err := g.Wait()
	if stopErr := scheduler.Stop(); stopErr != nil {
		logger.Warn("stopping scheduler: %v", stopErr)
	}
	return err
}
