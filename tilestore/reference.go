package tilestore

import (
	"context"
	"fmt"
	"image"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/raster"
)

type reference struct {
	store *Store
	name  string
}

func (r *reference) Name() string {
	return r.name
}

func (r *reference) SampleDimensions(ctx context.Context) ([]coverage.SampleDimension, error) {
	var dims []coverage.SampleDimension
	err := r.store.view(ctx, r.name, func(ci *coverageInfo) error {
		dims = append(dims, ci.SampleDimensions...)
		return nil
	})
	return dims, err
}

func (r *reference) SetSampleDimensions(ctx context.Context, dims []coverage.SampleDimension) error {
	return r.store.update(ctx, r.name, func(ci *coverageInfo) error {
		ci.SampleDimensions = append([]coverage.SampleDimension(nil), dims...)
		return nil
	})
}

func (r *reference) Pyramids(ctx context.Context) ([]coverage.Pyramid, error) {
	var ps []coverage.Pyramid
	err := r.store.view(ctx, r.name, func(ci *coverageInfo) error {
		for _, p := range ci.Pyramids {
			ps = append(ps, &pyramid{ref: r, id: p.ID, crs: p.CRS})
		}
		return nil
	})
	return ps, err
}

// CreatePyramid returns the pyramid of the given CRS, creating it with a random ID if needed.
func (r *reference) CreatePyramid(ctx context.Context, crs coverage.CRS) (coverage.Pyramid, error) {
	var p *pyramid
	err := r.store.update(ctx, r.name, func(ci *coverageInfo) error {
		for _, pi := range ci.Pyramids {
			if pi.CRS.Equal(crs) {
				p = &pyramid{ref: r, id: pi.ID, crs: pi.CRS}
				return nil
			}
		}
		pi := pyramidInfo{ID: coverage.NewUUID(), CRS: crs}
		ci.Pyramids = append(ci.Pyramids, pi)
		p = &pyramid{ref: r, id: pi.ID, crs: crs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func validateSpec(spec coverage.MosaicSpec) error {
	switch {
	case spec.GridSize.Cols <= 0 || spec.GridSize.Rows <= 0:
		return fmt.Errorf("invalid mosaic grid size %+v", spec.GridSize)
	case spec.TileSize.Width <= 0 || spec.TileSize.Height <= 0:
		return fmt.Errorf("invalid mosaic tile size %+v", spec.TileSize)
	case spec.Scale <= 0:
		return fmt.Errorf("invalid mosaic scale %v", spec.Scale)
	case len(spec.UpperLeft) < 2:
		return fmt.Errorf("mosaic upper left corner needs at least 2 ordinates, got %v", spec.UpperLeft)
	}
	return nil
}

func (r *reference) CreateMosaic(ctx context.Context, pyramidID coverage.UUID, spec coverage.MosaicSpec) (coverage.Mosaic, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	spec.UpperLeft = append([]float64(nil), spec.UpperLeft...)
	mi := mosaicInfo{ID: coverage.NewUUID(), Spec: spec}
	err := r.store.update(ctx, r.name, func(ci *coverageInfo) error {
		p := ci.pyramid(pyramidID)
		if p == nil {
			return fmt.Errorf("pyramid %s not found in coverage %q", pyramidID, r.name)
		}
		p.Mosaics = append(p.Mosaics, mi)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mosaic{store: r.store, id: mi.ID, spec: mi.Spec}, nil
}

// WriteTile encodes img as PNG and stores it at (x, y). Safe for concurrent use.
func (r *reference) WriteTile(ctx context.Context, pyramidID coverage.UUID, mosaicID coverage.UUID, x, y int, img image.Image) error {
	err := r.store.view(ctx, r.name, func(ci *coverageInfo) error {
		p := ci.pyramid(pyramidID)
		if p == nil {
			return fmt.Errorf("pyramid %s not found in coverage %q", pyramidID, r.name)
		}
		m := p.mosaic(mosaicID)
		if m == nil {
			return fmt.Errorf("mosaic %s not found in pyramid %s", mosaicID, pyramidID)
		}
		if !m.Spec.Contains(coverage.GridPosition{X: x, Y: y}) {
			return fmt.Errorf("tile (%d,%d) outside of mosaic %s grid %+v", x, y, mosaicID, m.Spec.GridSize)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ba, err := raster.Encode(img)
	if err != nil {
		return err
	}
	return r.store.blobs.Add(ctx, []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]{{
		BlobTable: r.store.tilesTable,
		Blobs:     []coverage.KeyValuePair[coverage.UUID, []byte]{{Key: tileID(mosaicID, x, y), Value: ba}},
	}})
}

type pyramid struct {
	ref *reference
	id  coverage.UUID
	crs coverage.CRS
}

func (p *pyramid) ID() coverage.UUID {
	return p.id
}

func (p *pyramid) CRS() coverage.CRS {
	return p.crs
}

func (p *pyramid) Mosaics(ctx context.Context) ([]coverage.Mosaic, error) {
	var ms []coverage.Mosaic
	err := p.ref.store.view(ctx, p.ref.name, func(ci *coverageInfo) error {
		pi := ci.pyramid(p.id)
		if pi == nil {
			return fmt.Errorf("pyramid %s no longer exists", p.id)
		}
		for _, m := range pi.Mosaics {
			ms = append(ms, &mosaic{store: p.ref.store, id: m.ID, spec: m.Spec})
		}
		return nil
	})
	return ms, err
}
