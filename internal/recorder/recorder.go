package recorder

// Module: recorder
// Turns typed write requests into canonical-layout file commits, and typed
// read requests into decoded records. One Recorder per archive kind.

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/gitstore"
	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// ErrMalformedRecord is returned when a record commit touched zero or many
// files where exactly one was expected.
var ErrMalformedRecord = errors.New("record commit did not touch exactly one file")

// Params describe one record write.
type Params struct {
	ServiceID    string
	DocumentType string
	Content      []byte
	Changelog    string
	MimeType     string

	// DocumentDate becomes the commit author date. Zero means now.
	DocumentDate time.Time
}

// Outcome is the result of a record write. The zero Outcome means the content
// was identical to the previous record and nothing was committed.
type Outcome struct {
	ID            string
	IsFirstRecord bool
	Date          time.Time
}

// Recorded reports whether a commit was created.
func (o Outcome) Recorded() bool { return o.ID != "" }

// Record is one archived snapshot or version read back from storage.
type Record struct {
	ID       string
	Content  []byte
	MimeType string
	Date     time.Time
	Path     string
}

// Recorder stores records of one archive kind under the layout
// <serviceId>/<documentType>.<ext>.
type Recorder struct {
	store      *gitstore.Store
	defaultExt string
	logger     logging.Logger
}

// New creates a Recorder over a git store. defaultExt is used for mime types
// outside the extension table, e.g. ".html" for snapshots, ".md" for versions.
func New(store *gitstore.Store, defaultExt string, logger logging.Logger) *Recorder {
	return &Recorder{store: store, defaultExt: defaultExt, logger: logger}
}

func (r *Recorder) filePath(serviceID, documentType, ext string) string {
	return path.Join(serviceID, documentType+ext)
}

func (r *Recorder) filePattern(serviceID, documentType string) string {
	return path.Join(serviceID, documentType+".*")
}

// Record writes the content to its canonical path and commits it. It is
// idempotent: identical content produces no commit and a zero Outcome.
// IsFirstRecord is computed from trackedness before the commit.
func (r *Recorder) Record(p Params) (Outcome, error) {
	if p.ServiceID == "" || p.DocumentType == "" {
		return Outcome{}, fmt.Errorf("recorder: service id and document type are required")
	}

	ext := ExtensionFor(p.MimeType, r.defaultExt)
	rel := r.filePath(p.ServiceID, p.DocumentType, ext)

	tracked, err := r.store.IsTracked(rel)
	if err != nil {
		return Outcome{}, err
	}

	date := p.DocumentDate
	if date.IsZero() {
		date = time.Now()
	}

	hash, changed, err := r.store.WriteAndCommit(rel, p.Content, p.Changelog, date)
	if err != nil {
		return Outcome{}, err
	}
	if !changed {
		r.logger.Debug("content unchanged, no record created",
			logging.Field{Key: "path", Value: rel})
		return Outcome{}, nil
	}

	return Outcome{ID: hash, IsFirstRecord: !tracked, Date: date}, nil
}

// LatestRecord returns the newest record for a document, or false when the
// document has never been recorded.
func (r *Recorder) LatestRecord(serviceID, documentType string) (Record, bool, error) {
	entry, found, err := r.store.FindUnique(r.filePattern(serviceID, documentType))
	if err != nil || !found {
		return Record{}, false, err
	}

	content, err := r.store.ReadFileAt(entry.Hash, entry.Path)
	if err != nil {
		return Record{}, false, err
	}

	return Record{
		ID:       entry.Hash,
		Content:  content,
		MimeType: MimeTypeFor(path.Ext(entry.Path), ""),
		Date:     entry.Date,
		Path:     entry.Path,
	}, true, nil
}

// RecordByID loads the record created by a given commit. The commit must have
// touched exactly one file.
func (r *Recorder) RecordByID(id string) (Record, error) {
	entry, files, err := r.store.CommitInfo(id)
	if err != nil {
		return Record{}, err
	}
	if len(files) != 1 {
		return Record{}, fmt.Errorf("commit %s touched %d files: %w", id, len(files), ErrMalformedRecord)
	}

	content, err := r.store.ReadFileAt(id, files[0])
	if err != nil {
		return Record{}, err
	}

	return Record{
		ID:       entry.Hash,
		Content:  content,
		MimeType: MimeTypeFor(path.Ext(files[0]), ""),
		Date:     entry.Date,
		Path:     files[0],
	}, nil
}

// IsTracked reports whether the document has a record under any extension.
func (r *Recorder) IsTracked(serviceID, documentType string) (bool, error) {
	return r.store.IsTracked(r.filePattern(serviceID, documentType))
}

// Publish pushes the underlying repository to its remote.
func (r *Recorder) Publish(ctx context.Context) error {
	return r.store.Push(ctx)
}
