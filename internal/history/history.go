package history

// Module: history
// Composes the snapshots and versions recorders and encodes the archive
// policy: commit-message forms, first-record detection and the invariant
// binding every version to its source snapshot.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
	"github.com/apoliade/OpenTermsArchive/internal/recorder"
)

// ErrMissingSnapshotBinding is returned when a version record is attempted
// without the id of the snapshot it was derived from. This is an internal
// invariant violation and always fatal.
var ErrMissingSnapshotBinding = errors.New("version has no snapshot id")

// Config for the history facade.
type Config struct {
	// Publish enables pushing both repositories. When false Publish is a
	// no-op.
	Publish bool

	// SnapshotsBaseURL, when publishing, turns snapshot ids in version
	// commit messages into browsable URLs.
	SnapshotsBaseURL string
}

// SnapshotParams describe one raw capture to archive.
type SnapshotParams struct {
	ServiceID    string
	DocumentType string
	Content      []byte
	MimeType     string
}

// VersionParams describe one filtered version to archive. SnapshotID must
// name the snapshot the content was derived from; SnapshotDate aligns the
// version commit's author date with the snapshot's.
type VersionParams struct {
	ServiceID    string
	DocumentType string
	Content      []byte
	SnapshotID   string
	SnapshotDate time.Time
}

// History is the facade over the two record archives.
type History struct {
	cfg       Config
	snapshots *recorder.Recorder
	versions  *recorder.Recorder
	logger    logging.Logger
}

// New assembles the facade from the two recorders.
func New(cfg Config, snapshots, versions *recorder.Recorder, logger logging.Logger) *History {
	return &History{cfg: cfg, snapshots: snapshots, versions: versions, logger: logger}
}

func changelog(prefix, serviceID, documentType string) string {
	return fmt.Sprintf("%s %s %s", prefix, serviceID, documentType)
}

// snapshotReference renders the snapshot pointer embedded in version commit
// messages. Downstream tooling parses this paragraph.
func (h *History) snapshotReference(snapshotID string) string {
	ref := snapshotID
	if h.cfg.Publish && h.cfg.SnapshotsBaseURL != "" {
		ref = strings.TrimRight(h.cfg.SnapshotsBaseURL, "/") + "/" + snapshotID
	}
	return fmt.Sprintf("This version was recorded after filtering snapshot %s", ref)
}

// RecordSnapshot archives one raw capture. The first snapshot of a document
// is tagged "Start tracking", later ones "Update".
func (h *History) RecordSnapshot(p SnapshotParams) (recorder.Outcome, error) {
	tracked, err := h.snapshots.IsTracked(p.ServiceID, p.DocumentType)
	if err != nil {
		return recorder.Outcome{}, err
	}

	prefix := "Update"
	if !tracked {
		prefix = "Start tracking"
	}

	return h.snapshots.Record(recorder.Params{
		ServiceID:    p.ServiceID,
		DocumentType: p.DocumentType,
		Content:      p.Content,
		MimeType:     p.MimeType,
		Changelog:    changelog(prefix, p.ServiceID, p.DocumentType),
	})
}

// RecordVersion archives one filtered version bound to its snapshot.
func (h *History) RecordVersion(p VersionParams) (recorder.Outcome, error) {
	return h.recordVersion(p, false)
}

// RecordRefilter archives a version re-extracted from an existing snapshot.
// When the version file already exists the commit is tagged "Refilter".
func (h *History) RecordRefilter(p VersionParams) (recorder.Outcome, error) {
	return h.recordVersion(p, true)
}

func (h *History) recordVersion(p VersionParams, refilter bool) (recorder.Outcome, error) {
	if p.SnapshotID == "" {
		return recorder.Outcome{}, fmt.Errorf("record version %s %s: %w", p.ServiceID, p.DocumentType, ErrMissingSnapshotBinding)
	}

	tracked, err := h.versions.IsTracked(p.ServiceID, p.DocumentType)
	if err != nil {
		return recorder.Outcome{}, err
	}

	prefix := "Update"
	switch {
	case !tracked:
		prefix = "Start tracking"
	case refilter:
		prefix = "Refilter"
	}

	message := changelog(prefix, p.ServiceID, p.DocumentType) + "\n\n" + h.snapshotReference(p.SnapshotID)

	return h.versions.Record(recorder.Params{
		ServiceID:    p.ServiceID,
		DocumentType: p.DocumentType,
		Content:      p.Content,
		MimeType:     "text/markdown",
		Changelog:    message,
		DocumentDate: p.SnapshotDate,
	})
}

// LatestSnapshot returns the newest snapshot of a document, or false when
// none has been recorded yet.
func (h *History) LatestSnapshot(serviceID, documentType string) (recorder.Record, bool, error) {
	return h.snapshots.LatestRecord(serviceID, documentType)
}

// Publish pushes both repositories in parallel. A no-op when publishing is
// disabled.
func (h *History) Publish(ctx context.Context) error {
	if !h.cfg.Publish {
		h.logger.Debug("publishing disabled, skipping push")
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, rec := range []*recorder.Recorder{h.snapshots, h.versions} {
		wg.Add(1)
		go func(i int, rec *recorder.Recorder) {
			defer wg.Done()
			errs[i] = rec.Publish(ctx)
		}(i, rec)
	}
	wg.Wait()

	return errors.Join(errs...)
}
