package queue_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apoliade/OpenTermsArchive/internal/queue"
	"github.com/apoliade/OpenTermsArchive/internal/testutil"
)

// ─── Drain ─────────────────────────────────────────────────────────────

func TestDrain_WaitsForAllTasks(t *testing.T) {
	t.Parallel()
	q := queue.New("test", 4, &testutil.DummyLogger{})
	defer q.Close()

	var mu sync.Mutex
	done := 0
	for i := 0; i < 20; i++ {
		q.Submit(func() error {
			mu.Lock()
			done++
			mu.Unlock()
			return nil
		})
	}

	if err := q.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if done != 20 {
		t.Errorf("expected 20 tasks done, got %d", done)
	}
}

func TestDrain_EmptyQueueReturnsImmediately(t *testing.T) {
	t.Parallel()
	q := queue.New("test", 2, &testutil.DummyLogger{})
	defer q.Close()

	if err := q.Drain(); err != nil {
		t.Errorf("Drain on empty queue: %v", err)
	}
}

// ─── Bounded parallelism ───────────────────────────────────────────────

func TestWorkers_BoundInFlightTasks(t *testing.T) {
	t.Parallel()
	const workers = 5
	q := queue.New("test", workers, &testutil.DummyLogger{})
	defer q.Close()

	var mu sync.Mutex
	current, max := 0, 0

	for i := 0; i < 40; i++ {
		q.Submit(func() error {
			mu.Lock()
			current++
			if current > max {
				max = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			return nil
		})
	}

	if err := q.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if max > workers {
		t.Errorf("observed %d concurrent tasks, cap is %d", max, workers)
	}
	if max == 0 {
		t.Error("no task ever ran")
	}
}

// ─── Abort semantics ───────────────────────────────────────────────────

func TestTaskError_AbortsBatchAndDropsPending(t *testing.T) {
	t.Parallel()
	q := queue.New("test", 1, &testutil.DummyLogger{})
	defer q.Close()

	boom := errors.New("boom")
	var mu sync.Mutex
	executed := 0

	q.Submit(func() error {
		mu.Lock()
		executed++
		mu.Unlock()
		return boom
	})
	for i := 0; i < 5; i++ {
		q.Submit(func() error {
			mu.Lock()
			executed++
			mu.Unlock()
			return nil
		})
	}

	err := q.Drain()
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom from Drain, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// With one worker the failing task runs first; an aborted queue must
	// not start everything that was pending behind it.
	if executed > 2 {
		t.Errorf("expected pending tasks to be dropped after abort, %d executed", executed)
	}
}

func TestQueue_UsableAfterAbortedBatch(t *testing.T) {
	t.Parallel()
	q := queue.New("test", 2, &testutil.DummyLogger{})
	defer q.Close()

	q.Submit(func() error { return errors.New("first batch fails") })
	if err := q.Drain(); err == nil {
		t.Fatal("expected first batch to fail")
	}

	ran := false
	q.Submit(func() error { ran = true; return nil })
	if err := q.Drain(); err != nil {
		t.Fatalf("second batch Drain: %v", err)
	}
	if !ran {
		t.Error("expected task to run after queue reset")
	}
}

// ─── Close ─────────────────────────────────────────────────────────────

func TestSubmit_AfterCloseFails(t *testing.T) {
	t.Parallel()
	q := queue.New("test", 1, &testutil.DummyLogger{})
	q.Close()

	if err := q.Submit(func() error { return nil }); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
