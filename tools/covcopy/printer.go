package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sharedcode/coverage"
)

// printer writes progress lines, at most one per whole percent unless the event is final.
type printer struct {
	mu       sync.Mutex
	w        io.Writer
	quiet    bool
	last     float64
	warnings int64
	now      func() time.Time
}

func newPrinter(w io.Writer, quiet bool) *printer {
	return &printer{w: w, quiet: quiet, last: -1, now: time.Now}
}

func (p *printer) OnEvent(ctx context.Context, e coverage.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Kind {
	case coverage.Warning:
		p.warnings++
		fmt.Fprintf(p.w, "warning: %s: %s\n", e.Coverage, e.Message)
	case coverage.Failure:
		fmt.Fprintf(p.w, "failure: %s\n", e.Message)
	case coverage.Progress:
		if p.quiet {
			return
		}
		if !e.Final && math.Floor(e.Percent) <= p.last {
			return
		}
		p.last = math.Floor(e.Percent)
		fmt.Fprintln(p.w, p.line(e))
	}
}

func (p *printer) line(e coverage.Event) string {
	s := fmt.Sprintf("%5.1f%%", e.Percent)
	if e.Coverage != "" {
		s += " " + e.Coverage
	}
	if e.Total > 0 {
		s += fmt.Sprintf(" %s/%s", humanize.Comma(e.Completed), humanize.Comma(e.Total))
	}
	if e.ETA > 0 {
		now := p.now()
		s += ", " + humanize.RelTime(now, now.Add(e.ETA), "left", "ago")
	}
	if e.Total == 0 && e.Message != "" {
		s += " " + e.Message
	}
	return s
}
