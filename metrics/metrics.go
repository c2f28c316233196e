// Package metrics keeps process-wide analysis counters.
package metrics

import (
	"sync"
	"sync/atomic"
)

type Counters struct {
	runsStarted   int64
	runsSucceeded int64
	runsFailed    int64
	runsTimedOut  int64
	degradations  int64

	mu         sync.Mutex
	byAnalyzer map[string]int64
}

func New() *Counters { return &Counters{byAnalyzer: map[string]int64{}} }

func (c *Counters) RunStarted()   { atomic.AddInt64(&c.runsStarted, 1) }
func (c *Counters) RunSucceeded() { atomic.AddInt64(&c.runsSucceeded, 1) }
func (c *Counters) RunFailed()    { atomic.AddInt64(&c.runsFailed, 1) }
func (c *Counters) RunTimedOut()  { atomic.AddInt64(&c.runsTimedOut, 1) }

// Degraded counts one sub-analysis that fell back to its default.
func (c *Counters) Degraded(analyzer string) {
	atomic.AddInt64(&c.degradations, 1)
	c.mu.Lock()
	c.byAnalyzer[analyzer]++
	c.mu.Unlock()
}

func (c *Counters) Snapshot() map[string]int64 {
	out := map[string]int64{
		"runs_started":   atomic.LoadInt64(&c.runsStarted),
		"runs_succeeded": atomic.LoadInt64(&c.runsSucceeded),
		"runs_failed":    atomic.LoadInt64(&c.runsFailed),
		"runs_timed_out": atomic.LoadInt64(&c.runsTimedOut),
		"degradations":   atomic.LoadInt64(&c.degradations),
	}
	c.mu.Lock()
	for k, v := range c.byAnalyzer {
		out["degraded_"+k] = v
	}
	c.mu.Unlock()
	return out
}
