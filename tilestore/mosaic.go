package tilestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/raster"
)

type mosaic struct {
	store *Store
	id    coverage.UUID
	spec  coverage.MosaicSpec
}

func (m *mosaic) ID() coverage.UUID {
	return m.id
}

func (m *mosaic) Spec() coverage.MosaicSpec {
	return m.spec
}

// ReadTiles fetches the tiles from a producer goroutine. Found tiles carry their PNG payload as a
// lazy source. The channel is closed after EndOfStream, or without it when ctx is done.
func (m *mosaic) ReadTiles(ctx context.Context, positions []coverage.GridPosition, depth int) (<-chan coverage.TileResult, error) {
	if depth < 1 {
		depth = 1
	}
	ch := make(chan coverage.TileResult, depth)
	go func() {
		defer close(ch)
		send := func(r coverage.TileResult) bool {
			select {
			case ch <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, pos := range positions {
			r := coverage.TileResult{Position: pos}
			if !m.spec.Contains(pos) {
				r.Kind = coverage.TileFailed
				r.Err = fmt.Errorf("tile %s outside of mosaic grid %+v", pos, m.spec.GridSize)
			} else if ba, err := m.store.blobs.GetOne(ctx, m.store.tilesTable, tileID(m.id, pos.X, pos.Y)); err != nil {
				if errors.Is(err, coverage.ErrBlobNotFound) {
					r.Kind = coverage.TileMissing
				} else {
					r.Kind = coverage.TileFailed
					r.Err = coverage.Error{Code: coverage.TileStreamFailure, Err: err, UserData: pos}
				}
			} else {
				r.Kind = coverage.TileFound
				r.Tile = coverage.Tile{Position: pos, Source: raster.BytesSource(ba)}
			}
			if !send(r) {
				return
			}
		}
		send(coverage.TileResult{Kind: coverage.EndOfStream})
	}()
	return ch, nil
}
