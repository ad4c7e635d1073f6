package tracker

// Listener wiring is capability-based: Attach accepts any value and wires it
// for every event whose single-method interface it implements. A listener
// only interested in publication implements RecordsPublishedListener and
// nothing else.

import (
	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

type FirstSnapshotRecordedListener interface {
	OnFirstSnapshotRecorded(serviceID, documentType, snapshotID string)
}

type SnapshotRecordedListener interface {
	OnSnapshotRecorded(serviceID, documentType, snapshotID string)
}

type SnapshotNotChangedListener interface {
	OnSnapshotNotChanged(serviceID, documentType string)
}

type FirstVersionRecordedListener interface {
	OnFirstVersionRecorded(serviceID, documentType, versionID string)
}

type VersionRecordedListener interface {
	OnVersionRecorded(serviceID, documentType, versionID string)
}

type VersionNotChangedListener interface {
	OnVersionNotChanged(serviceID, documentType string)
}

type RecordsPublishedListener interface {
	OnRecordsPublished()
}

type InaccessibleContentListener interface {
	OnInaccessibleContent(err error, serviceID, documentType string)
}

type ErrorListener interface {
	OnError(err error, serviceID, documentType string)
}

func (t *Tracker) emitFirstSnapshotRecorded(serviceID, documentType, snapshotID string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(FirstSnapshotRecordedListener); ok {
			h.OnFirstSnapshotRecorded(serviceID, documentType, snapshotID)
		}
	}
}

func (t *Tracker) emitSnapshotRecorded(serviceID, documentType, snapshotID string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(SnapshotRecordedListener); ok {
			h.OnSnapshotRecorded(serviceID, documentType, snapshotID)
		}
	}
}

func (t *Tracker) emitSnapshotNotChanged(serviceID, documentType string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(SnapshotNotChangedListener); ok {
			h.OnSnapshotNotChanged(serviceID, documentType)
		}
	}
}

func (t *Tracker) emitFirstVersionRecorded(serviceID, documentType, versionID string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(FirstVersionRecordedListener); ok {
			h.OnFirstVersionRecorded(serviceID, documentType, versionID)
		}
	}
}

func (t *Tracker) emitVersionRecorded(serviceID, documentType, versionID string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(VersionRecordedListener); ok {
			h.OnVersionRecorded(serviceID, documentType, versionID)
		}
	}
}

func (t *Tracker) emitVersionNotChanged(serviceID, documentType string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(VersionNotChangedListener); ok {
			h.OnVersionNotChanged(serviceID, documentType)
		}
	}
}

func (t *Tracker) emitRecordsPublished() {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(RecordsPublishedListener); ok {
			h.OnRecordsPublished()
		}
	}
}

func (t *Tracker) emitInaccessibleContent(err error, serviceID, documentType string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(InaccessibleContentListener); ok {
			h.OnInaccessibleContent(err, serviceID, documentType)
		}
	}
}

func (t *Tracker) emitError(err error, serviceID, documentType string) {
	for _, l := range t.attachedListeners() {
		if h, ok := l.(ErrorListener); ok {
			h.OnError(err, serviceID, documentType)
		}
	}
}

// attachedListeners returns a stable copy of the listener list for emission.
func (t *Tracker) attachedListeners() []any {
	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()
	return append([]any(nil), t.listeners...)
}

// LoggingListener logs every lifecycle event. Attached by the CLI so runs
// are observable without a dedicated listener.
type LoggingListener struct {
	Logger logging.Logger
}

func (l *LoggingListener) OnFirstSnapshotRecorded(serviceID, documentType, snapshotID string) {
	l.Logger.Info("first snapshot recorded",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "snapshot_id", Value: snapshotID})
}

func (l *LoggingListener) OnSnapshotRecorded(serviceID, documentType, snapshotID string) {
	l.Logger.Info("snapshot recorded",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "snapshot_id", Value: snapshotID})
}

func (l *LoggingListener) OnSnapshotNotChanged(serviceID, documentType string) {
	l.Logger.Info("snapshot not changed",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType})
}

func (l *LoggingListener) OnFirstVersionRecorded(serviceID, documentType, versionID string) {
	l.Logger.Info("first version recorded",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "version_id", Value: versionID})
}

func (l *LoggingListener) OnVersionRecorded(serviceID, documentType, versionID string) {
	l.Logger.Info("version recorded",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "version_id", Value: versionID})
}

func (l *LoggingListener) OnVersionNotChanged(serviceID, documentType string) {
	l.Logger.Info("version not changed",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType})
}

func (l *LoggingListener) OnRecordsPublished() {
	l.Logger.Info("records published")
}

func (l *LoggingListener) OnInaccessibleContent(err error, serviceID, documentType string) {
	l.Logger.Warn("inaccessible content",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "error", Value: err.Error()})
}

func (l *LoggingListener) OnError(err error, serviceID, documentType string) {
	l.Logger.Error("tracking failed",
		logging.Field{Key: "service", Value: serviceID},
		logging.Field{Key: "document", Value: documentType},
		logging.Field{Key: "error", Value: err.Error()})
}
