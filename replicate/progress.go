package replicate

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sharedcode/coverage"
)

// emitter serializes event delivery. Listener panics are recovered and logged so that
// consuming events never affects a replication.
type emitter struct {
	mu       sync.Mutex
	listener coverage.Listener
	index    int
	count    int
	percent  float64
}

func newEmitter(listener coverage.Listener, count int) *emitter {
	return &emitter{listener: listener, count: count}
}

// overall maps a coverage-local fraction to the run percentage.
func (e *emitter) overall(fraction float64) float64 {
	if e.count == 0 {
		return 100
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	return (float64(e.index) + fraction) / float64(e.count) * 100
}

func (e *emitter) startCoverage(ctx context.Context, index int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = index
	e.deliver(ctx, coverage.Event{
		Kind:     coverage.Progress,
		Coverage: name,
		Message:  fmt.Sprintf("copying coverage %s (%d/%d)", name, index+1, e.count),
		Percent:  e.overall(0),
	})
}

func (e *emitter) progress(ctx context.Context, ev coverage.Event, fraction float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev.Kind = coverage.Progress
	ev.Percent = e.overall(fraction)
	e.deliver(ctx, ev)
}

func (e *emitter) warn(ctx context.Context, name string, err error, pos *coverage.GridPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliver(ctx, coverage.Event{
		Kind:     coverage.Warning,
		Coverage: name,
		Message:  err.Error(),
		Percent:  e.percent,
		Position: pos,
		Err:      err,
	})
}

func (e *emitter) fail(ctx context.Context, name string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliver(ctx, coverage.Event{
		Kind:     coverage.Failure,
		Coverage: name,
		Message:  err.Error(),
		Percent:  e.percent,
		Final:    true,
		Err:      err,
	})
}

func (e *emitter) finish(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deliver(ctx, coverage.Event{
		Kind:    coverage.Progress,
		Message: fmt.Sprintf("%d coverage(s) copied", e.count),
		Percent: 100,
		Final:   true,
	})
}

// deliver must be called with e.mu held.
func (e *emitter) deliver(ctx context.Context, ev coverage.Event) {
	if ev.Kind == coverage.Progress {
		e.percent = ev.Percent
	}
	ev.Timestamp = time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Warn("progress listener panicked", "coverage", ev.Coverage, "panic", fmt.Sprint(r))
		}
	}()
	e.listener.OnEvent(ctx, ev)
}

// tileProgress tracks completed tile writes of one pyramidal coverage.
type tileProgress struct {
	emitter   *emitter
	coverage  string
	total     int64
	completed atomic.Int64
	started   time.Time
}

func newTileProgress(e *emitter, name string, total int64) *tileProgress {
	return &tileProgress{emitter: e, coverage: name, total: total, started: time.Now()}
}

// done records one successful write and reports it. The counter is read under the emitter
// lock so listeners observe non-decreasing completed counts.
func (p *tileProgress) done(ctx context.Context) {
	p.completed.Add(1)
	p.emitter.mu.Lock()
	defer p.emitter.mu.Unlock()

	completed := p.completed.Load()
	elapsed := time.Since(p.started)
	eta := time.Duration(0)
	if completed > 0 && p.total > completed {
		eta = time.Duration(float64(p.total-completed) * (float64(elapsed) / float64(completed)))
	}
	fraction := 1.0
	if p.total > 0 {
		fraction = float64(completed) / float64(p.total)
	}
	p.emitter.deliver(ctx, coverage.Event{
		Kind:      coverage.Progress,
		Coverage:  p.coverage,
		Message:   fmt.Sprintf("%d/%d (%s)", completed, p.total, eta.Round(time.Second)),
		Percent:   p.emitter.overall(fraction),
		Completed: completed,
		Total:     p.total,
		ETA:       eta,
	})
}
