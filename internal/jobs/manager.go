// Package jobs runs long-lived, cancellable, checkpointable units of work
// on a bounded pool of workers and lets callers observe, cancel, and await
// them. Records are in-memory only; they do not survive a process restart.
package jobs

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pwalhed/photodex/internal/errors"
)

// State is a job lifecycle state.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a terminal state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Priority is a scheduling class. Queued jobs run FIFO within their class;
// high drains before normal.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ReportFunc atomically publishes a job's progress and checkpoint. A nil
// checkpoint leaves the previous checkpoint in place.
type ReportFunc func(progress any, checkpoint any)

// Body is the unit of work a job executes. It runs exactly once on some
// worker. ctx is cancelled by Manager.Cancel; the body observes it
// cooperatively. checkpoint is the initial checkpoint supplied at enqueue,
// payload the caller's input. A body that stops early because of
// cancellation marks that in its own result; the manager decides the
// terminal state from the cancel signal alone, never from an early return.
type Body func(ctx context.Context, report ReportFunc, checkpoint any, payload any) (any, error)

// Snapshot is a point-in-time view of a job record.
type Snapshot struct {
	ID         string
	Type       string
	Priority   Priority
	State      State
	Progress   any
	Checkpoint any
	Result     any
	Err        error
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

type record struct {
	id         string
	jobType    string
	priority   Priority
	state      State
	progress   any
	checkpoint any
	result     any
	err        error
	body       Body
	payload    any
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// Manager schedules job bodies onto a fixed-size worker pool.
type Manager struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   map[string]*record
	high   []*record
	normal []*record
	closed bool

	wg     sync.WaitGroup
	logger *zap.Logger
}

// New starts a Manager with maxWorkers workers. A nil logger disables
// logging.
func New(maxWorkers int, logger *zap.Logger) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		jobs:   make(map[string]*record),
		logger: logger,
	}
	m.cond = sync.NewCond(&m.mu)

	m.wg.Add(maxWorkers)
	for i := 0; i < maxWorkers; i++ {
		go m.worker()
	}
	return m
}

// Option configures an enqueued job.
type Option func(*record)

// WithPriority sets the job's scheduling class.
func WithPriority(p Priority) Option {
	return func(r *record) {
		if p == PriorityHigh || p == PriorityNormal {
			r.priority = p
		}
	}
}

// WithCheckpoint supplies an initial checkpoint, typically taken from a
// prior partial run of the same job type.
func WithCheckpoint(checkpoint any) Option {
	return func(r *record) {
		r.checkpoint = checkpoint
	}
}

// Enqueue schedules a job body and returns its id immediately. The queue
// is unbounded; Enqueue never blocks on pool saturation.
func (m *Manager) Enqueue(jobType string, body Body, payload any, opts ...Option) string {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &record{
		id:        generateULID(),
		jobType:   jobType,
		priority:  PriorityNormal,
		state:     StateQueued,
		body:      body,
		payload:   payload,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	for _, opt := range opts {
		opt(rec)
	}

	m.mu.Lock()
	m.jobs[rec.id] = rec
	if rec.priority == PriorityHigh {
		m.high = append(m.high, rec)
	} else {
		m.normal = append(m.normal, rec)
	}
	m.cond.Signal()
	m.mu.Unlock()

	m.logger.Debug("job enqueued",
		zap.String("job_id", rec.id),
		zap.String("type", jobType),
		zap.String("priority", string(rec.priority)))
	return rec.id
}

// Cancel sets the job's cancel signal. Idempotent; a no-op for unknown or
// terminal jobs. A still-queued job is marked cancelled immediately; a
// running body must observe its context and stop cooperatively.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return
	}
	rec.cancel()
	if rec.state == StateQueued {
		rec.state = StateCancelled
		rec.finishedAt = time.Now()
		close(rec.done)
		m.logger.Debug("queued job cancelled", zap.String("job_id", id))
	}
}

// Inspect returns a point-in-time snapshot of the job. Never blocks.
func (m *Manager) Inspect(id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return nil, errors.NewJobNotFound(id)
	}
	return &Snapshot{
		ID:         rec.id,
		Type:       rec.jobType,
		Priority:   rec.priority,
		State:      rec.state,
		Progress:   rec.progress,
		Checkpoint: rec.checkpoint,
		Result:     rec.result,
		Err:        rec.err,
		CreatedAt:  rec.createdAt,
		StartedAt:  rec.startedAt,
		FinishedAt: rec.finishedAt,
	}, nil
}

// Wait blocks until the job reaches a terminal state or timeout elapses,
// and reports whether it terminated. It never cancels the job. A
// non-positive timeout waits indefinitely; an unknown id reports false.
func (m *Manager) Wait(id string, timeout time.Duration) bool {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return false
	}

	if timeout <= 0 {
		<-rec.done
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-rec.done:
		return true
	case <-timer.C:
		return false
	}
}

// Remove drops a terminal job's record. Running or queued jobs are kept.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.jobs[id]; ok && rec.state.Terminal() {
		delete(m.jobs, id)
	}
}

// Close stops accepting dequeues after the backlog drains and waits for
// workers to exit. Running jobs are left to finish; callers who want them
// stopped cancel them first.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		for !m.closed && len(m.high) == 0 && len(m.normal) == 0 {
			m.cond.Wait()
		}

		var rec *record
		switch {
		case len(m.high) > 0:
			rec = m.high[0]
			m.high = m.high[1:]
		case len(m.normal) > 0:
			rec = m.normal[0]
			m.normal = m.normal[1:]
		default:
			// closed and drained
			m.mu.Unlock()
			return
		}

		if rec.state != StateQueued {
			// cancelled while queued
			m.mu.Unlock()
			continue
		}
		rec.state = StateRunning
		rec.startedAt = time.Now()
		m.mu.Unlock()

		m.run(rec)
	}
}

func (m *Manager) run(rec *record) {
	logger := m.logger.With(zap.String("job_id", rec.id), zap.String("type", rec.jobType))
	logger.Debug("job started")

	result, err := invoke(rec, m.report(rec))

	m.mu.Lock()
	rec.finishedAt = time.Now()
	switch {
	case err != nil:
		rec.state = StateFailed
		rec.err = err
	case rec.ctx.Err() != nil:
		// The cancel signal was set; the body returned early by convention.
		rec.state = StateCancelled
		rec.result = result
	default:
		rec.state = StateCompleted
		rec.result = result
	}
	state := rec.state
	m.mu.Unlock()
	close(rec.done)

	switch state {
	case StateFailed:
		logger.Warn("job failed", zap.Error(err))
	default:
		logger.Debug("job finished", zap.String("state", string(state)))
	}
}

// report builds the ReportFunc for one record.
func (m *Manager) report(rec *record) ReportFunc {
	return func(progress any, checkpoint any) {
		m.mu.Lock()
		rec.progress = progress
		if checkpoint != nil {
			rec.checkpoint = checkpoint
		}
		m.mu.Unlock()
	}
}

// invoke runs the body, converting a panic into a failed-job error.
func invoke(rec *record, report ReportFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return rec.body(rec.ctx, report, rec.checkpoint, rec.payload)
}

// generateULID generates a new ULID.
func generateULID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		// rand.Reader does not fail in practice
		panic(err)
	}
	return id.String()
}
