package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pwalhed/photodex/internal/errors"
)

func newTestManager(t *testing.T, workers int) *Manager {
	t.Helper()
	m := New(workers, nil)
	t.Cleanup(m.Close)
	return m
}

func TestEnqueueAndComplete(t *testing.T) {
	m := newTestManager(t, 2)

	id := m.Enqueue("noop", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		return payload.(int) * 2, nil
	}, 21)

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}

	snap, err := m.Inspect(id)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if snap.State != StateCompleted {
		t.Errorf("expected completed, got %s", snap.State)
	}
	if snap.Result != 42 {
		t.Errorf("expected result 42, got %v", snap.Result)
	}
	if snap.Err != nil {
		t.Errorf("expected nil error, got %v", snap.Err)
	}
	if snap.FinishedAt.IsZero() {
		t.Error("expected finished timestamp")
	}
}

func TestBodyErrorFailsJob(t *testing.T) {
	m := newTestManager(t, 1)

	wantErr := errors.NewInternal(nil)
	id := m.Enqueue("failing", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		return nil, wantErr
	}, nil)

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}

	snap, _ := m.Inspect(id)
	if snap.State != StateFailed {
		t.Errorf("expected failed, got %s", snap.State)
	}
	if snap.Err != wantErr {
		t.Errorf("expected original error retained, got %v", snap.Err)
	}
}

func TestBodyPanicFailsJob(t *testing.T) {
	m := newTestManager(t, 1)

	id := m.Enqueue("panicking", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		panic("boom")
	}, nil)

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}
	snap, _ := m.Inspect(id)
	if snap.State != StateFailed {
		t.Errorf("expected failed after panic, got %s", snap.State)
	}
	if snap.Err == nil {
		t.Error("expected panic converted to error")
	}
}

func TestProgressAndCheckpointReporting(t *testing.T) {
	m := newTestManager(t, 1)

	id := m.Enqueue("reporting", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		report("step 1", 10)
		report("step 2", nil) // nil checkpoint keeps the previous one
		return nil, nil
	}, nil)

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}

	snap, _ := m.Inspect(id)
	if snap.Progress != "step 2" {
		t.Errorf("expected latest progress, got %v", snap.Progress)
	}
	if snap.Checkpoint != 10 {
		t.Errorf("expected checkpoint preserved across nil report, got %v", snap.Checkpoint)
	}
}

func TestInitialCheckpointPassedToBody(t *testing.T) {
	m := newTestManager(t, 1)

	got := make(chan any, 1)
	id := m.Enqueue("resuming", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		got <- checkpoint
		return nil, nil
	}, nil, WithCheckpoint("cursor-7"))

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}
	if cp := <-got; cp != "cursor-7" {
		t.Errorf("expected initial checkpoint in body, got %v", cp)
	}
}

func TestCancelRunningJob(t *testing.T) {
	m := newTestManager(t, 1)

	started := make(chan struct{})
	id := m.Enqueue("cancellable", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		close(started)
		<-ctx.Done()
		return "stopped early", nil
	}, nil)

	<-started
	m.Cancel(id)
	m.Cancel(id) // idempotent

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}

	snap, _ := m.Inspect(id)
	if snap.State != StateCancelled {
		t.Errorf("expected cancelled, got %s", snap.State)
	}
	// Result of a cancelled body is still retained
	if snap.Result != "stopped early" {
		t.Errorf("expected body result retained, got %v", snap.Result)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	m := newTestManager(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	blocker := m.Enqueue("blocker", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, nil)
	<-started

	queued := m.Enqueue("queued", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		t.Error("cancelled queued job must not run")
		return nil, nil
	}, nil)

	m.Cancel(queued)

	snap, _ := m.Inspect(queued)
	if snap.State != StateCancelled {
		t.Errorf("expected queued job cancelled immediately, got %s", snap.State)
	}
	if !m.Wait(queued, time.Second) {
		t.Error("cancelled queued job should be terminal")
	}

	close(release)
	if !m.Wait(blocker, 5*time.Second) {
		t.Fatal("blocker did not terminate")
	}
}

func TestEarlyReturnWithoutSignalIsCompleted(t *testing.T) {
	m := newTestManager(t, 1)

	// The manager must not infer cancellation from an early return;
	// only a set cancel signal produces StateCancelled.
	id := m.Enqueue("early", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		return "partial", nil
	}, nil)

	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}
	snap, _ := m.Inspect(id)
	if snap.State != StateCompleted {
		t.Errorf("expected completed, got %s", snap.State)
	}
}

func TestHighPriorityRunsFirst(t *testing.T) {
	m := newTestManager(t, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	m.Enqueue("blocker", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}, nil)
	<-started

	var mu sync.Mutex
	var order []string
	mark := func(name string) Body {
		return func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	m.Enqueue("normal-1", mark("normal-1"), nil)
	m.Enqueue("normal-2", mark("normal-2"), nil)
	high := m.Enqueue("high-1", mark("high-1"), nil, WithPriority(PriorityHigh))
	last := m.Enqueue("normal-3", mark("normal-3"), nil)

	close(release)
	if !m.Wait(high, 5*time.Second) || !m.Wait(last, 5*time.Second) {
		t.Fatal("jobs did not terminate")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 || order[0] != "high-1" {
		t.Errorf("expected high-1 to run first, got %v", order)
	}
	if order[1] != "normal-1" || order[2] != "normal-2" || order[3] != "normal-3" {
		t.Errorf("expected FIFO within normal class, got %v", order)
	}
}

func TestWorkerPoolBound(t *testing.T) {
	m := newTestManager(t, 2)

	var running, peak atomic.Int32
	var ids []string
	for i := 0; i < 6; i++ {
		id := m.Enqueue("counting", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		}, nil)
		ids = append(ids, id)
	}

	for _, id := range ids {
		if !m.Wait(id, 10*time.Second) {
			t.Fatal("job did not terminate")
		}
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("expected at most 2 concurrent jobs, observed %d", got)
	}
}

func TestWaitTimeout(t *testing.T) {
	m := newTestManager(t, 1)

	release := make(chan struct{})
	id := m.Enqueue("slow", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		<-release
		return nil, nil
	}, nil)

	if m.Wait(id, 50*time.Millisecond) {
		t.Error("expected Wait to time out")
	}
	close(release)
	if !m.Wait(id, 5*time.Second) {
		t.Error("expected Wait to succeed after release")
	}
}

func TestInspectUnknownJob(t *testing.T) {
	m := newTestManager(t, 1)

	_, err := m.Inspect("01UNKNOWN")
	if !errors.Is(err, errors.ErrJobNotFound) {
		t.Errorf("expected JOB_NOT_FOUND, got %v", err)
	}
	if m.Wait("01UNKNOWN", 10*time.Millisecond) {
		t.Error("expected Wait on unknown job to report false")
	}
}

func TestRemove(t *testing.T) {
	m := newTestManager(t, 1)

	id := m.Enqueue("noop", func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error) {
		return nil, nil
	}, nil)
	if !m.Wait(id, 5*time.Second) {
		t.Fatal("job did not terminate")
	}

	m.Remove(id)
	if _, err := m.Inspect(id); !errors.Is(err, errors.ErrJobNotFound) {
		t.Errorf("expected record removed, got %v", err)
	}
}
