package replicate

import (
	"context"
	"fmt"
	"image"
	log "log/slog"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/raster"
)

type sourceMosaics struct {
	pyramid coverage.Pyramid
	mosaics []coverage.Mosaic
}

// copyPyramids streams every tile of src into dst, keeping pyramids and mosaic specs identical.
// All submitted writes are finished before it returns.
func (r *Replicator) copyPyramids(ctx context.Context, e *emitter, src, dst coverage.PyramidalReference) (err error) {
	dims, err := src.SampleDimensions(ctx)
	if err != nil {
		return err
	}
	if err := dst.SetSampleDimensions(ctx, dims); err != nil {
		return err
	}

	pyramids, err := src.Pyramids(ctx)
	if err != nil {
		return err
	}
	sources := make([]sourceMosaics, 0, len(pyramids))
	var total int64
	for _, p := range pyramids {
		ms, err := p.Mosaics(ctx)
		if err != nil {
			return err
		}
		for _, m := range ms {
			total += m.Spec().GridSize.Area()
		}
		sources = append(sources, sourceMosaics{pyramid: p, mosaics: ms})
	}

	progress := newTileProgress(e, src.Name(), total)
	work, pool := coverage.JobProcessor(ctx, r.opts.Workers, r.opts.QueueDepth)
	defer func() {
		close(work)
		if werr := pool.Wait(); werr != nil && err == nil {
			err = werr
		}
	}()

	for _, s := range sources {
		dp, err := dst.CreatePyramid(ctx, s.pyramid.CRS())
		if err != nil {
			return err
		}
		for _, m := range s.mosaics {
			dm, err := dst.CreateMosaic(ctx, dp.ID(), m.Spec())
			if err != nil {
				return err
			}
			w := tileWriter{emitter: e, progress: progress, dst: dst, pyramidID: dp.ID(), mosaicID: dm.ID()}
			if err := r.copyMosaic(ctx, m, w, work); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyMosaic is the producer: it consumes the source tile stream in row-major order and
// submits one write per found tile.
func (r *Replicator) copyMosaic(ctx context.Context, m coverage.Mosaic, w tileWriter, work chan<- func() error) error {
	positions := m.Spec().Positions()
	stream, err := m.ReadTiles(ctx, positions, r.opts.QueueDepth)
	if err != nil {
		return err
	}
	name := w.progress.coverage
	for {
		res, ok := <-stream
		if !ok {
			w.emitter.warn(ctx, name, coverage.Error{
				Code: coverage.TileStreamFailure,
				Err:  fmt.Errorf("tile stream of mosaic %s closed before its end", m.ID()),
			}, nil)
			return nil
		}
		switch res.Kind {
		case coverage.EndOfStream:
			return nil
		case coverage.TileMissing:
			continue
		case coverage.TileFailed:
			pos := res.Position
			w.emitter.warn(ctx, name, coverage.Error{Code: coverage.TileStreamFailure, Err: res.Err, UserData: pos}, &pos)
			continue
		}

		pos := res.Position
		img, err := raster.DecodeTile(ctx, res.Tile)
		if err != nil {
			w.emitter.warn(ctx, name, coverage.Error{Code: coverage.TileStreamFailure, Err: err, UserData: pos}, &pos)
			continue
		}
		img = raster.Normalize(img)
		work <- func() error {
			w.write(ctx, pos, img)
			return nil
		}
	}
}

// tileWriter writes one tile; a failure is a warning and does not affect other tiles.
type tileWriter struct {
	emitter   *emitter
	progress  *tileProgress
	dst       coverage.PyramidalReference
	pyramidID coverage.UUID
	mosaicID  coverage.UUID
}

func (w tileWriter) write(ctx context.Context, pos coverage.GridPosition, img image.Image) {
	if err := w.dst.WriteTile(ctx, w.pyramidID, w.mosaicID, pos.X, pos.Y, img); err != nil {
		log.Warn("tile write failed", "coverage", w.progress.coverage, "tile", pos.String(), "error", err)
		w.emitter.warn(ctx, w.progress.coverage, coverage.Error{
			Code:     coverage.TileWriteFailure,
			Err:      fmt.Errorf("writing tile %s: %w", pos, err),
			UserData: pos,
		}, &pos)
		return
	}
	w.progress.done(ctx)
}
