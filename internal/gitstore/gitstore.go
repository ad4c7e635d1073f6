package gitstore

// Module: gitstore
// Append-only, commit-backed storage over a local git working directory.
// Commit hashes are the record ids handed out to the rest of the system.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/apoliade/OpenTermsArchive/internal/logging"
)

// ErrAmbiguousPath is returned when a path pattern resolves to more than one
// tracked file.
var ErrAmbiguousPath = errors.New("path pattern matches multiple tracked files")

// StorageError wraps any underlying git or filesystem failure with the
// operation and path it happened on.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("gitstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Entry is one commit touching a tracked file.
type Entry struct {
	Hash    string
	Message string
	Date    time.Time
	Path    string
}

// Config for a single Store.
type Config struct {
	// Path is the working directory of the repository. Created and
	// initialized if it does not exist yet.
	Path string

	// Remote, when non-empty, is configured as origin on a repository that
	// has no origin yet; an existing origin is left as it is. Cloning an
	// existing remote is out of band.
	Remote string

	// AuthorName and AuthorEmail sign every commit.
	AuthorName  string
	AuthorEmail string
}

// Store wraps one git repository. All mutating and history-reading operations
// go through a single mutex: a git working tree and its index are not safe
// under concurrent mutation, so add/commit/read sequences form one critical
// section per repository.
type Store struct {
	cfg    Config
	repo   *git.Repository
	logger logging.Logger

	mu sync.Mutex
}

// Open opens the repository at cfg.Path, initializing it when absent.
func Open(cfg Config, logger logging.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("gitstore: path is required")
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "Open Terms Archive Bot"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "bot@opentermsarchive.org"
	}

	repo, err := git.PlainOpen(cfg.Path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if mkErr := os.MkdirAll(cfg.Path, 0o755); mkErr != nil {
			return nil, &StorageError{Op: "init", Path: cfg.Path, Err: mkErr}
		}
		repo, err = git.PlainInit(cfg.Path, false)
	}
	if err != nil {
		return nil, &StorageError{Op: "open", Path: cfg.Path, Err: err}
	}

	if cfg.Remote != "" {
		if _, rErr := repo.Remote(git.DefaultRemoteName); errors.Is(rErr, git.ErrRemoteNotFound) {
			_, rErr = repo.CreateRemote(&gitconfig.RemoteConfig{
				Name: git.DefaultRemoteName,
				URLs: []string{cfg.Remote},
			})
			if rErr != nil {
				return nil, &StorageError{Op: "remote", Path: cfg.Path, Err: rErr}
			}
		}
	}

	logger.Info("opened git store", logging.Field{Key: "path", Value: cfg.Path})

	return &Store{cfg: cfg, repo: repo, logger: logger}, nil
}

// Write creates or replaces a file in the working directory, creating parent
// directories as needed. It does not stage the file.
func (s *Store) Write(relPath string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := filepath.Join(s.cfg.Path, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return &StorageError{Op: "write", Path: relPath, Err: err}
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return &StorageError{Op: "write", Path: relPath, Err: err}
	}
	return nil
}

// Add stages a file.
func (s *Store) Add(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(relPath)
}

func (s *Store) addLocked(relPath string) error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return &StorageError{Op: "add", Path: relPath, Err: err}
	}
	if _, err := wt.Add(filepath.ToSlash(relPath)); err != nil {
		return &StorageError{Op: "add", Path: relPath, Err: err}
	}
	return nil
}

// WriteAndCommit writes, stages and commits a file in one critical section.
// The second return value reports whether a commit was created: when the
// staged content is identical to HEAD no commit happens and it is false.
// Both author and committer dates are set to date so chronological ordering
// reflects the document's own date rather than wall-clock.
func (s *Store) WriteAndCommit(relPath string, content []byte, message string, date time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := filepath.Join(s.cfg.Path, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", false, &StorageError{Op: "write", Path: relPath, Err: err}
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", false, &StorageError{Op: "write", Path: relPath, Err: err}
	}
	if err := s.addLocked(relPath); err != nil {
		return "", false, err
	}
	return s.commitLocked(relPath, message, date)
}

// Commit commits the previously staged file. See WriteAndCommit for the
// change-detection contract.
func (s *Store) Commit(relPath, message string, date time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(relPath, message, date)
}

func (s *Store) commitLocked(relPath, message string, date time.Time) (string, bool, error) {
	rel := filepath.ToSlash(relPath)

	wt, err := s.repo.Worktree()
	if err != nil {
		return "", false, &StorageError{Op: "commit", Path: rel, Err: err}
	}

	status, err := wt.Status()
	if err != nil {
		return "", false, &StorageError{Op: "status", Path: rel, Err: err}
	}
	fs, ok := status[rel]
	if !ok || (fs.Staging != git.Added && fs.Staging != git.Modified) {
		// Identical to HEAD: nothing staged, nothing to commit.
		return "", false, nil
	}

	if date.IsZero() {
		date = time.Now()
	}
	sig := &object.Signature{Name: s.cfg.AuthorName, Email: s.cfg.AuthorEmail, When: date}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", false, &StorageError{Op: "commit", Path: rel, Err: err}
	}

	s.logger.Debug("committed",
		logging.Field{Key: "path", Value: rel},
		logging.Field{Key: "hash", Value: hash.String()})

	return hash.String(), true, nil
}

// Push pushes to the configured remote. Already up to date is a success.
func (s *Store) Push(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.PushContext(ctx, &git.PushOptions{RemoteName: git.DefaultRemoteName})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return &StorageError{Op: "push", Path: s.cfg.Path, Err: err}
	}
	return nil
}

// headCommitLocked returns the HEAD commit, or (nil, nil) for an empty
// repository.
func (s *Store) headCommitLocked() (*object.Commit, error) {
	ref, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "head", Path: s.cfg.Path, Err: err}
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, &StorageError{Op: "head", Path: s.cfg.Path, Err: err}
	}
	return commit, nil
}

// matchTrackedLocked returns the HEAD tree paths matching pattern.
func (s *Store) matchTrackedLocked(pattern string) ([]string, error) {
	head, err := s.headCommitLocked()
	if err != nil || head == nil {
		return nil, err
	}
	tree, err := head.Tree()
	if err != nil {
		return nil, &StorageError{Op: "tree", Path: pattern, Err: err}
	}

	var matches []string
	iter := tree.Files()
	err = iter.ForEach(func(f *object.File) error {
		ok, mErr := doublestar.Match(pattern, f.Name)
		if mErr != nil {
			return mErr
		}
		if ok {
			matches = append(matches, f.Name)
		}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "match", Path: pattern, Err: err}
	}
	return matches, nil
}

// IsTracked reports whether any file at HEAD matches the pattern.
func (s *Store) IsTracked(pattern string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.matchTrackedLocked(pattern)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// FindUnique resolves a pattern that must match at most one tracked file and
// returns the latest commit touching it. The boolean is false when nothing
// matches.
func (s *Store) FindUnique(pattern string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := s.matchTrackedLocked(pattern)
	if err != nil {
		return Entry{}, false, err
	}
	switch len(matches) {
	case 0:
		return Entry{}, false, nil
	case 1:
	default:
		return Entry{}, false, &StorageError{Op: "find", Path: pattern, Err: ErrAmbiguousPath}
	}

	path := matches[0]
	entries, err := s.logLocked(path)
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[0], true, nil
}

// Log returns the commits touching relPath, newest first.
func (s *Store) Log(relPath string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logLocked(filepath.ToSlash(relPath))
}

func (s *Store) logLocked(rel string) ([]Entry, error) {
	head, err := s.headCommitLocked()
	if err != nil || head == nil {
		return nil, err
	}

	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash, FileName: &rel})
	if err != nil {
		return nil, &StorageError{Op: "log", Path: rel, Err: err}
	}
	defer iter.Close()

	var entries []Entry
	err = iter.ForEach(func(c *object.Commit) error {
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Date:    c.Author.When,
			Path:    rel,
		})
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, &StorageError{Op: "log", Path: rel, Err: err}
	}
	return entries, nil
}

// CommitInfo returns the metadata and changed files of one commit.
func (s *Store) CommitInfo(hash string) (Entry, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return Entry{}, nil, &StorageError{Op: "commit-info", Path: hash, Err: err}
	}

	stats, err := commit.Stats()
	if err != nil {
		return Entry{}, nil, &StorageError{Op: "commit-info", Path: hash, Err: err}
	}
	files := make([]string, 0, len(stats))
	for _, st := range stats {
		files = append(files, st.Name)
	}

	return Entry{Hash: commit.Hash.String(), Message: commit.Message, Date: commit.Author.When}, files, nil
}

// ReadFileAt returns the contents of relPath as of a given commit. Reading
// goes through the commit's tree, so the working directory is never moved.
func (s *Store) ReadFileAt(hash, relPath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commit, err := s.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, &StorageError{Op: "read-at", Path: relPath, Err: err}
	}
	file, err := commit.File(filepath.ToSlash(relPath))
	if err != nil {
		return nil, &StorageError{Op: "read-at", Path: relPath, Err: err}
	}
	reader, err := file.Blob.Reader()
	if err != nil {
		return nil, &StorageError{Op: "read-at", Path: relPath, Err: err}
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, &StorageError{Op: "read-at", Path: relPath, Err: err}
	}
	return content, nil
}

// ReadFileAtHead returns the contents of relPath at HEAD. The boolean is
// false when the file is not tracked.
func (s *Store) ReadFileAtHead(relPath string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.headCommitLocked()
	if err != nil || head == nil {
		return nil, false, err
	}
	file, err := head.File(filepath.ToSlash(relPath))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StorageError{Op: "read-head", Path: relPath, Err: err}
	}
	content, err := file.Contents()
	if err != nil {
		return nil, false, &StorageError{Op: "read-head", Path: relPath, Err: err}
	}
	return []byte(content), true, nil
}
