package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apoliade/OpenTermsArchive/internal/app"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/tracker"
)

// cmdContext returns a context canceled on SIGINT/SIGTERM. The context
// reaches the fetcher and the final push; a fetch cut short by cancellation
// is reported as inaccessible content and does not abort the batch.
func cmdContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()
	return ctx
}

func main() {
	var (
		configPath string
		services   []string
		verbose    bool
	)

	run := func(refilter bool) error {
		level := logging.LevelInfo
		if verbose {
			level = logging.LevelDebug
		}
		logger := logging.New(os.Stdout, level)

		cfg, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		components, err := app.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		engine := components.Tracker
		ctx := cmdContext()

		if err := engine.Init(ctx); err != nil {
			return err
		}
		engine.Attach(&tracker.LoggingListener{Logger: logger})

		if refilter {
			return engine.RefilterAndRecord(ctx, services)
		}
		return engine.TrackChanges(ctx, services)
	}

	root := &cobra.Command{
		Use:   "ota",
		Short: "Track the evolution of online services' legal documents",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	root.PersistentFlags().StringSliceVarP(&services, "services", "s", nil, "service ids to process (default: all)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug-level detail")

	root.AddCommand(&cobra.Command{
		Use:   "track",
		Short: "Fetch every declared document, record snapshots and versions, publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(false)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "refilter",
		Short: "Re-extract versions from the latest archived snapshots, publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(true)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
