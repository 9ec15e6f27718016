package backend

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/cel"
	"github.com/sharedcode/coverage/replicate"
)

// Job is a replication request: two store descriptions plus the replication options.
type Job struct {
	Source      Config            `json:"source"`
	Destination Config            `json:"destination"`
	Options     replicate.Options `json:"options"`
	// Filter is an optional CEL predicate over the coverage name.
	Filter string `json:"filter,omitempty"`
}

// NewJob returns a job with replicate.DefaultOptions.
func NewJob(source, destination Config) Job {
	return Job{Source: source, Destination: destination, Options: replicate.DefaultOptions()}
}

// Validate compiles the filter and checks that both backends are known, without opening them.
func (j Job) Validate() error {
	for _, c := range []Config{j.Source, j.Destination} {
		switch c.Type {
		case Memory, FS, FSWithEC, Redis, S3, Cassandra, WorldFile:
		default:
			return fmt.Errorf("unsupported backend type %q", c.Type)
		}
	}
	if j.Filter != "" {
		if _, err := cel.NewFilter(j.Filter); err != nil {
			return err
		}
	}
	return nil
}

// Run opens both stores, replicates the source into the destination and closes the stores.
func (j Job) Run(ctx context.Context, listener coverage.Listener) error {
	opts := j.Options
	if listener != nil {
		opts.Listener = listener
	}
	if j.Filter != "" {
		f, err := cel.NewFilter(j.Filter)
		if err != nil {
			return err
		}
		opts.Filter = f
	}

	src, closeSrc, err := Open(ctx, j.Source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer closeStore("source", closeSrc)
	dst, closeDst, err := Open(ctx, j.Destination)
	if err != nil {
		return fmt.Errorf("opening destination: %w", err)
	}
	defer closeStore("destination", closeDst)

	return replicate.New(opts).Replicate(ctx, src, dst)
}

func closeStore(role string, c Closer) {
	if err := c(); err != nil {
		log.Warn("failed closing store", "role", role, "error", err)
	}
}
