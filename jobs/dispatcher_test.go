package jobs

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/metrics"
	"github.com/Andrandra1na/AMER-SMA/orchestrator"
	"github.com/Andrandra1na/AMER-SMA/store"
)

type runnerFunc func(ctx context.Context, id int64) orchestrator.Outcome

func (f runnerFunc) Run(ctx context.Context, id int64) orchestrator.Outcome { return f(ctx, id) }

type statusRecorder struct {
	mu  sync.Mutex
	got map[int64]store.Status
}

func (s *statusRecorder) SetStatus(_ context.Context, id int64, st store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.got == nil {
		s.got = map[int64]store.Status{}
	}
	s.got[id] = st
	return nil
}

func (s *statusRecorder) status(id int64) store.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[id]
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func waitIdle(t *testing.T, d *Dispatcher, id int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.InFlight(id) {
		if time.Now().After(deadline) {
			t.Fatalf("session %d still in flight", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherRunsJob(t *testing.T) {
	ran := make(chan int64, 1)
	d := New(runnerFunc(func(ctx context.Context, id int64) orchestrator.Outcome {
		ran <- id
		return orchestrator.Outcome{SessionID: id, Status: store.StatusComplete}
	}), &statusRecorder{}, metrics.New(), quietLog(), 4, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if _, err := d.Enqueue(7); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case id := <-ran:
		if id != 7 {
			t.Fatalf("ran session %d", id)
		}
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
	waitIdle(t, d, 7)
	if st := d.Stats(); st.Processed != 1 || st.Failed != 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestDispatcherSingleFlight(t *testing.T) {
	release := make(chan struct{})
	d := New(runnerFunc(func(ctx context.Context, id int64) orchestrator.Outcome {
		<-release
		return orchestrator.Outcome{SessionID: id, Status: store.StatusComplete}
	}), &statusRecorder{}, nil, quietLog(), 4, 2, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if _, err := d.Enqueue(1); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := d.Enqueue(1); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second enqueue: %v", err)
	}
	if _, err := d.Enqueue(2); err != nil {
		t.Fatalf("other session: %v", err)
	}
	close(release)
	waitIdle(t, d, 1)
	if _, err := d.Enqueue(1); err != nil {
		t.Fatalf("enqueue after completion: %v", err)
	}
}

func TestDispatcherNotStartedAndFull(t *testing.T) {
	d := New(runnerFunc(func(ctx context.Context, id int64) orchestrator.Outcome {
		return orchestrator.Outcome{}
	}), nil, nil, quietLog(), 1, 1, time.Second)
	if _, err := d.Enqueue(1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("enqueue before start: %v", err)
	}

	// workers never pick up jobs because their context is already done
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	if _, err := d.Enqueue(1); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := d.Enqueue(2); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("enqueue on full queue: %v", err)
	}
}

func TestDispatcherTimeoutMarksFailed(t *testing.T) {
	status := &statusRecorder{}
	obs := metrics.New()
	d := New(runnerFunc(func(ctx context.Context, id int64) orchestrator.Outcome {
		<-ctx.Done()
		return orchestrator.Outcome{SessionID: id, Status: store.StatusFailed, Err: ctx.Err()}
	}), status, obs, quietLog(), 1, 1, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if _, err := d.Enqueue(3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitIdle(t, d, 3)
	if got := status.status(3); got != store.StatusFailed {
		t.Fatalf("status = %q", got)
	}
	if st := d.Stats(); st.TimedOut != 1 || st.Failed != 1 {
		t.Fatalf("stats %+v", st)
	}
	if snap := obs.Snapshot(); snap["runs_timed_out"] != 1 {
		t.Fatalf("snapshot %v", snap)
	}
}

func TestDispatcherRecoversPanic(t *testing.T) {
	status := &statusRecorder{}
	d := New(runnerFunc(func(ctx context.Context, id int64) orchestrator.Outcome {
		panic("boom")
	}), status, nil, quietLog(), 1, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if _, err := d.Enqueue(9); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitIdle(t, d, 9)
	if got := status.status(9); got != store.StatusFailed {
		t.Fatalf("status = %q", got)
	}
	if !d.Healthy() {
		t.Fatal("dispatcher unhealthy after a panic")
	}
	d.Stop(context.Background())
	if d.Healthy() {
		t.Fatal("dispatcher healthy after stop")
	}
}
