package ingest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pwalhed/photodex/internal/errors"
	"github.com/pwalhed/photodex/internal/jobs"
	"github.com/pwalhed/photodex/internal/testutil"
)

func TestJobBodyCompletes(t *testing.T) {
	orch, _, root := newTestOrchestrator(t)

	shoot := filepath.Join(root, "shoot")
	mkdir(t, shoot)
	testutil.WritePNG(t, filepath.Join(shoot, "a.png"), testutil.MakeGradient(10, 10))
	testutil.WritePNG(t, filepath.Join(shoot, "b.png"), testutil.MakeGradient(11, 11))

	mgr := jobs.New(1, nil)
	defer mgr.Close()

	id := mgr.Enqueue(JobTypeIngest, JobBody(orch), Request{Folders: []string{"shoot"}})
	if !mgr.Wait(id, 30*time.Second) {
		t.Fatal("job did not finish")
	}

	snap, err := mgr.Inspect(id)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if snap.State != jobs.StateCompleted {
		t.Fatalf("expected completed, got %s (err=%v)", snap.State, snap.Err)
	}

	result, ok := snap.Result.(*Progress)
	if !ok {
		t.Fatalf("unexpected result type %T", snap.Result)
	}
	if result.Processed != 2 || result.Total != 2 {
		t.Errorf("unexpected result %+v", result)
	}

	// The last reported checkpoint covers the full enumeration
	cp, ok := snap.Checkpoint.(*Checkpoint)
	if !ok || cp.Ordinal != 2 {
		t.Errorf("unexpected checkpoint %+v", snap.Checkpoint)
	}
}

func TestJobBodyCancelAndResume(t *testing.T) {
	orch, database, root := newTestOrchestrator(t)

	shoot := filepath.Join(root, "shoot")
	mkdir(t, shoot)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		testutil.WritePNG(t, filepath.Join(shoot, name), testutil.MakeGradient(10+len(name), 10))
	}

	mgr := jobs.New(1, nil)
	defer mgr.Close()

	// Cancel through the manager once the first file is handled. The id is
	// only known after Enqueue returns, so the listener waits for it.
	idCh := make(chan string, 1)
	var once sync.Once
	req := Request{
		Folders: []string{"shoot"},
		OnProgress: func(p Progress) {
			if p.Processed+p.SkippedExisting == 1 {
				once.Do(func() { mgr.Cancel(<-idCh) })
			}
		},
	}
	id := mgr.Enqueue(JobTypeIngest, JobBody(orch), req)
	idCh <- id
	if !mgr.Wait(id, 30*time.Second) {
		t.Fatal("job did not finish")
	}

	snap, err := mgr.Inspect(id)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if snap.State != jobs.StateCancelled {
		t.Fatalf("expected cancelled, got %s (err=%v)", snap.State, snap.Err)
	}
	result, ok := snap.Result.(*Progress)
	if !ok || !result.Cancelled {
		t.Fatalf("expected a cancelled result, got %+v", snap.Result)
	}
	if result.Processed != 1 {
		t.Errorf("expected 1 processed before cancel, got %d", result.Processed)
	}

	// Resume a fresh job from the cancelled record's checkpoint
	resumeID := mgr.Enqueue(JobTypeIngest, JobBody(orch),
		Request{Folders: []string{"shoot"}},
		jobs.WithCheckpoint(snap.Checkpoint))
	if !mgr.Wait(resumeID, 30*time.Second) {
		t.Fatal("resume job did not finish")
	}

	resumed, err := mgr.Inspect(resumeID)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if resumed.State != jobs.StateCompleted {
		t.Fatalf("expected completed resume, got %s (err=%v)", resumed.State, resumed.Err)
	}
	final := resumed.Result.(*Progress)
	if final.Processed != 2 || final.Total != 3 || final.Cancelled {
		t.Errorf("unexpected resume result %+v", final)
	}
	if imageCount(t, database) != 3 {
		t.Errorf("expected 3 images across both jobs, got %d", imageCount(t, database))
	}
}

func TestJobBodyRejectsBadPayload(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)

	mgr := jobs.New(1, nil)
	defer mgr.Close()

	id := mgr.Enqueue(JobTypeIngest, JobBody(orch), "not a request")
	if !mgr.Wait(id, 30*time.Second) {
		t.Fatal("job did not finish")
	}

	snap, err := mgr.Inspect(id)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if snap.State != jobs.StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if !errors.Is(snap.Err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", snap.Err)
	}
}
