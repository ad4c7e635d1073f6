package tracker

// Module: tracker
// The orchestrator. Holds the loaded service declarations, owns the two
// bounded work queues and drives the per-document pipelines:
// fetch -> snapshot record -> filter -> version record.

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/apoliade/OpenTermsArchive/internal/declaration"
	"github.com/apoliade/OpenTermsArchive/internal/fetcher"
	"github.com/apoliade/OpenTermsArchive/internal/filter"
	"github.com/apoliade/OpenTermsArchive/internal/history"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/queue"
)

// Tracker drives tracking and refiltering batches over the declared
// services.
type Tracker struct {
	cfg     Config
	fetch   fetcher.Fetcher
	filters *filter.Engine
	history *history.History
	logger  logging.Logger

	initOnce sync.Once
	initErr  error

	// services is populated once by Init and read-only afterwards, so
	// workers share it without locking.
	services map[string]declaration.Service

	trackQueue    *queue.Queue
	refilterQueue *queue.Queue

	listenersMu sync.RWMutex
	listeners   []any
}

// New creates a Tracker. Call Init before tracking.
func New(cfg Config, fetch fetcher.Fetcher, filters *filter.Engine, hist *history.History, logger logging.Logger) *Tracker {
	if cfg.MaxParallelTrackings < 1 {
		cfg.MaxParallelTrackings = DefaultMaxParallelTrackings
	}
	if cfg.MaxParallelRefilters < 1 {
		cfg.MaxParallelRefilters = DefaultMaxParallelRefilters
	}
	return &Tracker{
		cfg:     cfg,
		fetch:   fetch,
		filters: filters,
		history: hist,
		logger:  logger.With(logging.Field{Key: "component", Value: "tracker"}),
	}
}

// Init loads the service declarations and builds the work queues. A second
// call is a no-op.
func (t *Tracker) Init(ctx context.Context) error {
	t.initOnce.Do(func() {
		services, err := declaration.Load(t.cfg.DeclarationsPath, t.logger)
		if err != nil {
			t.initErr = err
			return
		}

		for _, svc := range services {
			for docType, doc := range svc.Documents {
				if err := filter.ValidateSelectors(doc); err != nil {
					t.initErr = fmt.Errorf("service %s, document %s: %w", svc.ID, docType, err)
					return
				}
			}
		}

		t.services = services
		t.trackQueue = queue.New("tracking", t.cfg.MaxParallelTrackings, t.logger)
		t.refilterQueue = queue.New("refiltering", t.cfg.MaxParallelRefilters, t.logger)
	})
	return t.initErr
}

// Attach registers a listener for every event capability it implements.
func (t *Tracker) Attach(listener any) {
	if listener == nil {
		return
	}
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, listener)
}

// Services returns the ids of the loaded declarations.
func (t *Tracker) Services() []string {
	ids := make([]string, 0, len(t.services))
	for id := range t.services {
		ids = append(ids, id)
	}
	return ids
}

// selectServices resolves the requested service ids against the loaded
// declarations. An empty request selects everything; unknown ids are logged
// and skipped.
func (t *Tracker) selectServices(serviceIDs []string) []declaration.Service {
	if len(serviceIDs) == 0 {
		selected := make([]declaration.Service, 0, len(t.services))
		for _, svc := range t.services {
			selected = append(selected, svc)
		}
		return selected
	}

	var selected []declaration.Service
	for _, id := range serviceIDs {
		svc, ok := t.services[id]
		if !ok {
			t.logger.Warn("unknown service id, skipping",
				logging.Field{Key: "service", Value: id})
			continue
		}
		selected = append(selected, svc)
	}
	return selected
}

// TrackChanges fetches and records every declared document of the given
// services (all services when the list is empty), then publishes. The error
// is the first fatal worker error; inaccessible documents never abort the
// batch.
func (t *Tracker) TrackChanges(ctx context.Context, serviceIDs []string) error {
	if t.trackQueue == nil {
		return errors.New("tracker: not initialized")
	}

	batchID := uuid.New().String()
	selected := t.selectServices(serviceIDs)
	t.logger.Info("starting tracking batch",
		logging.Field{Key: "batch_id", Value: batchID},
		logging.Field{Key: "services", Value: len(selected)})

	for _, svc := range selected {
		for docType, doc := range svc.Documents {
			serviceID, documentType, document := svc.ID, docType, doc
			t.trackQueue.Submit(func() error {
				return t.guard(t.trackDocument(ctx, serviceID, documentType, document), serviceID, documentType)
			})
		}
	}

	if err := t.trackQueue.Drain(); err != nil {
		return fmt.Errorf("tracking batch %s aborted: %w", batchID, err)
	}

	return t.publish(ctx, batchID)
}

// RefilterAndRecord re-extracts versions from the latest archived snapshots
// of the given services without fetching, then publishes.
func (t *Tracker) RefilterAndRecord(ctx context.Context, serviceIDs []string) error {
	if t.refilterQueue == nil {
		return errors.New("tracker: not initialized")
	}

	batchID := uuid.New().String()
	selected := t.selectServices(serviceIDs)
	t.logger.Info("starting refilter batch",
		logging.Field{Key: "batch_id", Value: batchID},
		logging.Field{Key: "services", Value: len(selected)})

	for _, svc := range selected {
		for docType, doc := range svc.Documents {
			serviceID, documentType, document := svc.ID, docType, doc
			t.refilterQueue.Submit(func() error {
				return t.guard(t.refilterDocument(serviceID, documentType, document), serviceID, documentType)
			})
		}
	}

	if err := t.refilterQueue.Drain(); err != nil {
		return fmt.Errorf("refilter batch %s aborted: %w", batchID, err)
	}

	return t.publish(ctx, batchID)
}

// guard converts the per-document failure semantics: inaccessible content is
// reported and consumed, anything else is reported and re-raised to abort
// the batch.
func (t *Tracker) guard(err error, serviceID, documentType string) error {
	if err == nil {
		return nil
	}

	var inaccessible *fetcher.InaccessibleContentError
	if errors.As(err, &inaccessible) {
		t.emitInaccessibleContent(err, serviceID, documentType)
		return nil
	}

	t.emitError(err, serviceID, documentType)
	return err
}

func (t *Tracker) publish(ctx context.Context, batchID string) error {
	if err := t.history.Publish(ctx); err != nil {
		return fmt.Errorf("publish after batch %s: %w", batchID, err)
	}
	t.emitRecordsPublished()
	return nil
}

// trackDocument runs one document through fetch -> snapshot -> filter ->
// version. The version always binds to the snapshot just written.
func (t *Tracker) trackDocument(ctx context.Context, serviceID, documentType string, doc declaration.Document) error {
	result, err := t.fetch.Fetch(ctx, doc.Location, doc.ExecuteClientScripts)
	if err != nil {
		return err
	}
	if result == nil || len(result.Content) == 0 {
		t.logger.Debug("empty content, skipping",
			logging.Field{Key: "service", Value: serviceID},
			logging.Field{Key: "document", Value: documentType})
		return nil
	}

	snapshot, err := t.history.RecordSnapshot(history.SnapshotParams{
		ServiceID:    serviceID,
		DocumentType: documentType,
		Content:      result.Content,
		MimeType:     result.MimeType,
	})
	if err != nil {
		return err
	}
	if !snapshot.Recorded() {
		// An unchanged snapshot implies an unchanged version: the filter
		// is deterministic, so there is nothing new to extract.
		t.emitSnapshotNotChanged(serviceID, documentType)
		t.emitVersionNotChanged(serviceID, documentType)
		return nil
	}
	if snapshot.IsFirstRecord {
		t.emitFirstSnapshotRecorded(serviceID, documentType, snapshot.ID)
	} else {
		t.emitSnapshotRecorded(serviceID, documentType, snapshot.ID)
	}

	cleaned, err := t.filters.Apply(filter.Params{
		Content:  result.Content,
		MimeType: result.MimeType,
		Document: doc,
	})
	if err != nil {
		return err
	}

	version, err := t.history.RecordVersion(history.VersionParams{
		ServiceID:    serviceID,
		DocumentType: documentType,
		Content:      []byte(cleaned),
		SnapshotID:   snapshot.ID,
		SnapshotDate: snapshot.Date,
	})
	if err != nil {
		return err
	}
	t.emitVersionOutcome(version.ID, version.IsFirstRecord, serviceID, documentType)
	return nil
}

// refilterDocument re-runs extraction over the latest archived snapshot.
func (t *Tracker) refilterDocument(serviceID, documentType string, doc declaration.Document) error {
	snapshot, found, err := t.history.LatestSnapshot(serviceID, documentType)
	if err != nil {
		return err
	}
	if !found {
		t.logger.Debug("no snapshot to refilter",
			logging.Field{Key: "service", Value: serviceID},
			logging.Field{Key: "document", Value: documentType})
		return nil
	}

	cleaned, err := t.filters.Apply(filter.Params{
		Content:       snapshot.Content,
		MimeType:      snapshot.MimeType,
		Document:      doc,
		IsRefiltering: true,
	})
	if err != nil {
		return err
	}

	version, err := t.history.RecordRefilter(history.VersionParams{
		ServiceID:    serviceID,
		DocumentType: documentType,
		Content:      []byte(cleaned),
		SnapshotID:   snapshot.ID,
		SnapshotDate: snapshot.Date,
	})
	if err != nil {
		return err
	}
	t.emitVersionOutcome(version.ID, version.IsFirstRecord, serviceID, documentType)
	return nil
}

func (t *Tracker) emitVersionOutcome(versionID string, isFirst bool, serviceID, documentType string) {
	switch {
	case versionID == "":
		t.emitVersionNotChanged(serviceID, documentType)
	case isFirst:
		t.emitFirstVersionRecorded(serviceID, documentType, versionID)
	default:
		t.emitVersionRecorded(serviceID, documentType, versionID)
	}
}
