// Package jobs runs session analyses in the background: a bounded queue, a
// fixed worker pool, at most one in-flight run per session and an outer
// deadline per run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/orchestrator"
	"github.com/Andrandra1na/AMER-SMA/store"
)

var (
	ErrNotStarted = errors.New("dispatcher not started")
	ErrInFlight   = errors.New("analysis already in flight for session")
	ErrQueueFull  = errors.New("analysis queue full")
)

// Runner is the single analysis entry point; *orchestrator.Pipeline fits.
type Runner interface {
	Run(ctx context.Context, sessionID int64) orchestrator.Outcome
}

// StatusWriter marks sessions whose run was abandoned.
type StatusWriter interface {
	SetStatus(ctx context.Context, id int64, status store.Status) error
}

type TimeoutObserver interface {
	RunTimedOut()
	RunFailed()
}

type job struct {
	ID        string
	SessionID int64
	Queued    time.Time
}

type Stats struct {
	Length      int    `json:"length"`
	Capacity    int    `json:"capacity"`
	WorkerCount int    `json:"workers"`
	InFlight    int    `json:"in_flight"`
	Processed   uint64 `json:"processed"`
	Failed      uint64 `json:"failed"`
	TimedOut    uint64 `json:"timed_out"`
}

type Dispatcher struct {
	run     Runner
	status  StatusWriter
	obs     TimeoutObserver
	log     logrus.FieldLogger
	timeout time.Duration
	workers int

	jobs     chan job
	mu       sync.RWMutex
	started  bool
	stopped  bool
	inflight map[int64]string
	wg       sync.WaitGroup

	processed uint64
	failed    uint64
	timedOut  uint64
}

func New(run Runner, status StatusWriter, obs TimeoutObserver, log logrus.FieldLogger, capacity, workers int, timeout time.Duration) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if workers <= 0 {
		workers = 1
	}
	if capacity < workers {
		capacity = workers
	}
	return &Dispatcher{
		run:      run,
		status:   status,
		obs:      obs,
		log:      log.WithField("component", "jobs"),
		timeout:  timeout,
		workers:  workers,
		jobs:     make(chan job, capacity),
		inflight: map[int64]string{},
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Enqueue queues an analysis of sessionID without blocking and returns the
// job id. A session is in flight from Enqueue until its run returns.
func (d *Dispatcher) Enqueue(sessionID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.stopped {
		return "", ErrNotStarted
	}
	if id, ok := d.inflight[sessionID]; ok {
		return id, fmt.Errorf("%w %d (job %s)", ErrInFlight, sessionID, id)
	}
	j := job{ID: uuid.NewString(), SessionID: sessionID, Queued: time.Now()}
	select {
	case d.jobs <- j:
		d.inflight[sessionID] = j.ID
		return j.ID, nil
	default:
		d.log.WithField("session_id", sessionID).Warn("analysis queue full, dropping job")
		return "", ErrQueueFull
	}
}

// InFlight reports whether sessionID is queued or running.
func (d *Dispatcher) InFlight(sessionID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.inflight[sessionID]
	return ok
}

// Stop stops accepting jobs and waits for workers to drain until ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Stats{
		Length:      len(d.jobs),
		Capacity:    cap(d.jobs),
		WorkerCount: d.workers,
		InFlight:    len(d.inflight),
		Processed:   atomic.LoadUint64(&d.processed),
		Failed:      atomic.LoadUint64(&d.failed),
		TimedOut:    atomic.LoadUint64(&d.timedOut),
	}
}

// Healthy returns true once the pool is running and until it is stopped.
func (d *Dispatcher) Healthy() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.started && !d.stopped
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.handle(ctx, j)
		}
	}
}

type result struct {
	out   orchestrator.Outcome
	panic any
}

func (d *Dispatcher) handle(ctx context.Context, j job) {
	log := d.log.WithFields(logrus.Fields{"job_id": j.ID, "session_id": j.SessionID})
	start := time.Now()
	defer d.release(j.SessionID)

	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if d.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	res := d.runGuarded(jobCtx, j.SessionID)
	// a run past its deadline cannot commit: its context is already done
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) && res.panic == nil && !res.out.Success() {
		atomic.AddUint64(&d.timedOut, 1)
		if d.obs != nil {
			d.obs.RunTimedOut()
		}
		d.abandon(log, j.SessionID, "analysis exceeded its deadline")
	}

	atomic.AddUint64(&d.processed, 1)
	switch {
	case res.panic != nil:
		atomic.AddUint64(&d.failed, 1)
		if d.obs != nil {
			d.obs.RunFailed()
		}
		log.WithField("panic", fmt.Sprint(res.panic)).Error("analysis worker panicked")
		d.abandon(log, j.SessionID, "analysis worker panicked")
	case !res.out.Success():
		atomic.AddUint64(&d.failed, 1)
	}
	log.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"wait_ms":     start.Sub(j.Queued).Milliseconds(),
		"status":      res.out.Status,
	}).Info("analysis job finished")
}

func (d *Dispatcher) runGuarded(ctx context.Context, sessionID int64) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{panic: r}
		}
	}()
	return result{out: d.run.Run(ctx, sessionID)}
}

func (d *Dispatcher) abandon(log logrus.FieldLogger, sessionID int64, reason string) {
	if d.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.status.SetStatus(ctx, sessionID, store.StatusFailed); err != nil {
		log.WithError(err).Error("marking session failed")
		return
	}
	log.Warn(reason)
}

func (d *Dispatcher) release(sessionID int64) {
	d.mu.Lock()
	delete(d.inflight, sessionID)
	d.mu.Unlock()
}
