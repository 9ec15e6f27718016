package coverage

import (
	"context"
	"log/slog"
	"time"
)

// EventKind classifies a progress event.
type EventKind int

const (
	// Progress reports advancement (percent, completed tiles, ETA).
	Progress EventKind = iota
	// Warning reports a recoverable problem, e.g. a failed tile write or a skipped coverage.
	Warning
	// Failure reports the fatal error that stopped the run.
	Failure
)

func (k EventKind) String() string {
	switch k {
	case Progress:
		return "progress"
	case Warning:
		return "warning"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is emitted on the progress channel of a replication.
type Event struct {
	Kind     EventKind
	Coverage string
	Message  string
	// Percent is the overall advancement, 0 to 100.
	Percent float64
	// Final is set on the last event of a run.
	Final bool
	// Completed and Total count tiles of the current coverage, when known.
	Completed int64
	Total     int64
	ETA       time.Duration
	// Position is the tile concerned by a warning, if any.
	Position  *GridPosition
	Err       error
	Timestamp time.Time
}

// Listener receives progress events. Implementations must not block for long; failures to
// consume events never affect the replication outcome.
type Listener interface {
	OnEvent(ctx context.Context, event Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, event Event)

func (f ListenerFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) OnEvent(ctx context.Context, event Event) {}

// MultiListener fans out events to multiple listeners.
type MultiListener struct {
	listeners []Listener
}

// NewMultiListener creates a MultiListener that forwards events to all non-nil listeners.
func NewMultiListener(listeners ...Listener) *MultiListener {
	filtered := make([]Listener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			filtered = append(filtered, l)
		}
	}
	return &MultiListener{listeners: filtered}
}

func (m *MultiListener) OnEvent(ctx context.Context, event Event) {
	for _, l := range m.listeners {
		l.OnEvent(ctx, event)
	}
}

// SlogListener logs events to a slog.Logger: progress at debug, warnings at warn, failures at error.
type SlogListener struct {
	logger *slog.Logger
}

// NewSlogListener creates a SlogListener; a nil logger means slog.Default().
func NewSlogListener(logger *slog.Logger) *SlogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogListener{logger: logger}
}

func (l *SlogListener) OnEvent(ctx context.Context, event Event) {
	level := slog.LevelDebug
	switch event.Kind {
	case Warning:
		level = slog.LevelWarn
	case Failure:
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("coverage", event.Coverage),
		slog.Float64("percent", event.Percent),
	}
	if event.Total > 0 {
		attrs = append(attrs, slog.Int64("completed", event.Completed), slog.Int64("total", event.Total))
	}
	if event.Position != nil {
		attrs = append(attrs, slog.String("tile", event.Position.String()))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	l.logger.LogAttrs(ctx, level, event.Message, attrs...)
}

// ChannelListener forwards events to a channel without blocking; events are dropped when the
// channel is full.
type ChannelListener struct {
	C chan Event
}

// NewChannelListener creates a ChannelListener with a buffer of the given size.
func NewChannelListener(size int) *ChannelListener {
	return &ChannelListener{C: make(chan Event, size)}
}

func (l *ChannelListener) OnEvent(ctx context.Context, event Event) {
	select {
	case l.C <- event:
	default:
	}
}
