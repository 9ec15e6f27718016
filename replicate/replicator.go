package replicate

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/sharedcode/coverage"
)

// Replicator copies coverages between stores.
type Replicator struct {
	opts Options
}

// New returns a Replicator. Zero fields of opts are replaced by their defaults, except
// ReduceToDomain which is taken as given; start from DefaultOptions to get it enabled.
func New(opts Options) *Replicator {
	return &Replicator{opts: opts.withDefaults()}
}

// Replicate copies every coverage of source, in source order, into destination. The source is
// never modified. The first fatal error stops the run; it is returned and reported as a final
// Failure event. Cancellation of ctx is honored between coverages.
func (r *Replicator) Replicate(ctx context.Context, source, destination coverage.Store) error {
	names, err := r.names(ctx, source)
	if err != nil {
		e := newEmitter(r.opts.Listener, 0)
		e.fail(ctx, "", err)
		return err
	}
	e := newEmitter(r.opts.Listener, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			e.fail(ctx, name, err)
			return err
		}
		e.startCoverage(ctx, i, name)
		if err := r.copyCoverage(ctx, e, source, destination, name); err != nil {
			err = fmt.Errorf("replicating coverage %q: %w", name, err)
			log.Error(err.Error())
			e.fail(ctx, name, err)
			return err
		}
	}
	e.finish(ctx)
	return nil
}

func (r *Replicator) names(ctx context.Context, source coverage.Store) ([]string, error) {
	names, err := source.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing source coverages: %w", err)
	}
	if r.opts.Filter == nil {
		return names, nil
	}
	selected := make([]string, 0, len(names))
	for _, name := range names {
		ok, err := r.opts.Filter.Match(name)
		if err != nil {
			return nil, fmt.Errorf("filtering coverage %q: %w", name, err)
		}
		if ok {
			selected = append(selected, name)
		}
	}
	return selected, nil
}

func (r *Replicator) copyCoverage(ctx context.Context, e *emitter, source, destination coverage.Store, name string) error {
	srcRef, err := source.Reference(ctx, name)
	if err != nil {
		return err
	}
	if r.opts.Erase {
		if err := destination.Delete(ctx, name); err != nil {
			return fmt.Errorf("erasing destination: %w", err)
		}
	}
	dstRef, err := destination.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	dst, ok := dstRef.(coverage.PyramidalReference)
	if !ok {
		return coverage.Error{
			Code:     coverage.UnsupportedDestination,
			Err:      fmt.Errorf("destination reference %q is not pyramidal", name),
			UserData: name,
		}
	}

	switch src := srcRef.(type) {
	case coverage.PyramidalReference:
		log.Debug("streaming pyramids", "coverage", name)
		return r.copyPyramids(ctx, e, src, dst)
	case coverage.PlainReference:
		log.Debug("rebuilding pyramid", "coverage", name)
		return r.rebuild(ctx, e, src, dst)
	default:
		return fmt.Errorf("source reference %q is neither pyramidal nor plain", name)
	}
}
