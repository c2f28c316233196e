package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// diagnostics accumulates degraded sub-analyses across goroutines.
type diagnostics struct {
	mu    sync.Mutex
	items []Diagnostic
	log   logrus.FieldLogger
	obs   Observer
}

func (d *diagnostics) add(analyzer string, err error) Diagnostic {
	diag := Diagnostic{Analyzer: analyzer, Message: err.Error()}
	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()
	d.log.WithError(err).WithField("analyzer", analyzer).Warn("sub-analysis degraded")
	if d.obs != nil {
		d.obs.Degraded(analyzer)
	}
	return diag
}

func (d *diagnostics) list() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.items...)
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// readiness remembers which collaborators passed EnsureReady for this run.
type readiness map[string]error

func (r readiness) ok(analyzer string) bool {
	err, seen := r[analyzer]
	return seen && err == nil
}

type readyChecker interface {
	EnsureReady(ctx context.Context) error
}

// checkReady probes each collaborator once. A failed or missing collaborator
// is recorded as "<analyzer>.ready".
func checkReady(ctx context.Context, diags *diagnostics, checks map[string]readyChecker) readiness {
	r := make(readiness, len(checks))
	for name, c := range checks {
		var err error
		if c == nil {
			err = fmt.Errorf("%s not configured", name)
		} else {
			err = guard(func() error { return c.EnsureReady(ctx) })
		}
		r[name] = err
		if err != nil {
			diags.add(name+".ready", err)
		}
	}
	return r
}
