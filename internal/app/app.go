package app

// Module: app
// Composition root: assembles webclients, fetcher, stores, recorders,
// history and the tracking engine from one Config.

import (
	"fmt"

	"github.com/apoliade/OpenTermsArchive/internal/fetcher"
	"github.com/apoliade/OpenTermsArchive/internal/filter"
	"github.com/apoliade/OpenTermsArchive/internal/gitstore"
	"github.com/apoliade/OpenTermsArchive/internal/history"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/recorder"
	"github.com/apoliade/OpenTermsArchive/internal/tracker"
	"github.com/apoliade/OpenTermsArchive/internal/webclient"
)

// Components holds the assembled application with its teardown.
type Components struct {
	Tracker *tracker.Tracker

	webclients []webclient.WebClient
	logger     logging.Logger
}

// Build assembles all components. Callers own Close.
func Build(cfg *Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	filter.RegisterDefaultFilters()

	wcCfg := webclient.DefaultConfig()
	wcCfg.Timeout = cfg.FetchTimeout()

	static, err := webclient.New(wcCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build static webclient: %w", err)
	}
	clients := []webclient.WebClient{static}

	var scripted webclient.WebClient
	if cfg.Fetcher.EnableClientScripts {
		scriptedCfg := wcCfg
		scriptedCfg.Client = webclient.ClientChromedp
		scripted, err = webclient.New(scriptedCfg, logger)
		if err != nil {
			closeAll(clients, logger)
			return nil, fmt.Errorf("build scripted webclient: %w", err)
		}
		clients = append(clients, scripted)
	}

	fetch, err := fetcher.New(static, scripted, logger)
	if err != nil {
		closeAll(clients, logger)
		return nil, err
	}

	snapshotsStore, err := gitstore.Open(gitstore.Config{
		Path:        cfg.History.SnapshotsPath,
		Remote:      cfg.History.SnapshotsRemote,
		AuthorName:  cfg.History.AuthorName,
		AuthorEmail: cfg.History.AuthorEmail,
	}, logger)
	if err != nil {
		closeAll(clients, logger)
		return nil, err
	}

	versionsStore, err := gitstore.Open(gitstore.Config{
		Path:        cfg.History.VersionsPath,
		Remote:      cfg.History.VersionsRemote,
		AuthorName:  cfg.History.AuthorName,
		AuthorEmail: cfg.History.AuthorEmail,
	}, logger)
	if err != nil {
		closeAll(clients, logger)
		return nil, err
	}

	hist := history.New(history.Config{
		Publish:          cfg.History.Publish,
		SnapshotsBaseURL: cfg.History.SnapshotsBaseURL,
	},
		recorder.New(snapshotsStore, ".html", logger),
		recorder.New(versionsStore, ".md", logger),
		logger,
	)

	engine := tracker.New(tracker.Config{
		DeclarationsPath:     cfg.DeclarationsPath,
		MaxParallelTrackings: cfg.Tracker.MaxParallelTrackings,
		MaxParallelRefilters: cfg.Tracker.MaxParallelRefilters,
	}, fetch, filter.NewEngine(logger), hist, logger)

	return &Components{
		Tracker:    engine,
		webclients: clients,
		logger:     logger,
	}, nil
}

// Close releases webclient resources.
func (c *Components) Close() {
	closeAll(c.webclients, c.logger)
}

func closeAll(clients []webclient.WebClient, logger logging.Logger) {
	for _, wc := range clients {
		if wc == nil {
			continue
		}
		if err := wc.Close(); err != nil {
			logger.Warn("failed to close webclient",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}
