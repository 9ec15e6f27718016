package replicate

import (
	"runtime"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/geometry"
)

// DefaultQueueDepth is the capacity of the tile stream and of the write queue.
const DefaultQueueDepth = 64

// NameFilter selects the coverages to replicate.
type NameFilter interface {
	Match(name string) (bool, error)
}

// NameFilterFunc adapts a function to a NameFilter.
type NameFilterFunc func(name string) (bool, error)

func (f NameFilterFunc) Match(name string) (bool, error) {
	return f(name)
}

// Options configures a Replicator.
type Options struct {
	// Erase deletes a destination coverage of the same name before copying.
	Erase bool `json:"erase"`
	// ReduceToDomain crops rebuilt slices to their valid data.
	ReduceToDomain bool `json:"reduce_to_domain"`
	// Workers is the tile writer pool size; 0 means runtime.NumCPU().
	Workers int `json:"workers,omitempty"`
	// QueueDepth bounds the tile stream and the pending writes; 0 means DefaultQueueDepth.
	QueueDepth int `json:"queue_depth,omitempty"`

	Processor coverage.Processor `json:"-"`
	Listener  coverage.Listener  `json:"-"`
	// Filter, when set, skips the coverages it does not match.
	Filter NameFilter `json:"-"`
}

// DefaultOptions returns the default options: reduce to domain on, one writer per CPU.
func DefaultOptions() Options {
	return Options{
		ReduceToDomain: true,
		Workers:        runtime.NumCPU(),
		QueueDepth:     DefaultQueueDepth,
		Processor:      geometry.NewProcessor(),
		Listener:       coverage.NopListener{},
	}
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.Processor == nil {
		o.Processor = geometry.NewProcessor()
	}
	if o.Listener == nil {
		o.Listener = coverage.NopListener{}
	}
	return o
}
