package replicate

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/geometry"
	"github.com/sharedcode/coverage/raster"
)

// rebuild materializes a plain coverage as one pyramid holding a single-tile mosaic per slice.
// A non georeferenced source is skipped with a warning; any other failure is fatal.
func (r *Replicator) rebuild(ctx context.Context, e *emitter, src coverage.PlainReference, dst coverage.PyramidalReference) error {
	reader, err := src.Reader(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed closing coverage reader", "coverage", src.Name(), "error", err)
		}
	}()

	g, err := reader.GridGeometry(ctx)
	if err != nil {
		return err
	}
	if g.CRS.IsImage() {
		e.warn(ctx, src.Name(), coverage.Error{
			Code:     coverage.NotGeoreferenced,
			Err:      fmt.Errorf("coverage %q has image CRS %q and can't be placed in a pyramid, skipped", src.Name(), g.CRS),
			UserData: src.Name(),
		}, nil)
		return nil
	}

	dims, err := reader.SampleDimensions(ctx)
	if err != nil {
		return err
	}
	if err := dst.SetSampleDimensions(ctx, dims); err != nil {
		return err
	}
	p, err := dst.CreatePyramid(ctx, g.CRS)
	if err != nil {
		return err
	}

	count := geometry.SliceCount(g)
	done := 0
	for slice := range geometry.Slices(g) {
		c, err := reader.Read(ctx, slice)
		if err != nil {
			return fmt.Errorf("reading slice %v: %w", slice.Lower, err)
		}
		if c, err = r.process(ctx, c); err != nil {
			return err
		}

		c.SliceValues = slice.Lower
		img := raster.Normalize(c.Image)
		b := img.Bounds()
		spec := coverage.MosaicSpec{
			GridSize:  coverage.GridSize{Cols: 1, Rows: 1},
			TileSize:  coverage.TileSize{Width: b.Dx(), Height: b.Dy()},
			UpperLeft: c.Envelope().UpperLeft(),
			Scale:     c.Transform.ScaleX,
		}
		m, err := dst.CreateMosaic(ctx, p.ID(), spec)
		if err != nil {
			return err
		}
		if err := dst.WriteTile(ctx, p.ID(), m.ID(), 0, 0, img); err != nil {
			return coverage.Error{Code: coverage.TileWriteFailure, Err: err, UserData: slice.Lower}
		}

		done++
		e.progress(ctx, coverage.Event{
			Coverage:  src.Name(),
			Message:   fmt.Sprintf("%d/%d slices", done, count),
			Completed: int64(done),
			Total:     int64(count),
		}, float64(done)/float64(count))
	}
	return nil
}

// process straightens the slice and, when enabled, reduces it to its valid data domain.
func (r *Replicator) process(ctx context.Context, c coverage.GridCoverage) (coverage.GridCoverage, error) {
	c, err := r.opts.Processor.Straighten(ctx, c)
	if err != nil {
		return c, asTransformFailure("straighten", err)
	}
	if !r.opts.ReduceToDomain {
		return c, nil
	}
	c, err = r.opts.Processor.ReduceToDomain(ctx, c)
	if err != nil {
		return c, asTransformFailure("reduce to domain", err)
	}
	return c, nil
}

func asTransformFailure(op string, err error) error {
	if coverage.HasCode(err, coverage.TransformFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return coverage.Error{Code: coverage.TransformFailure, Err: fmt.Errorf("%s: %w", op, err)}
}
