package replicate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/inmemory"
	"github.com/sharedcode/coverage/tilestore"
)

var (
	webMercator = coverage.CRS{Code: "EPSG:3857", Kind: coverage.Projected}
	wgs84       = coverage.CRS{Code: "EPSG:4326", Kind: coverage.Geographic}
	elevation   = []coverage.SampleDimension{{
		Name: "elevation", Unit: "m", NoData: []float64{-32768}, Min: -500, Max: 9000,
		Categories: []coverage.Category{{Name: "sea", Min: -500, Max: 0}},
	}}
)

func newPyramidStore() *tilestore.Store {
	return tilestore.NewStore(inmemory.NewBlobStore(), tilestore.Options{})
}

func solidTile(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func mosaic2x2() coverage.MosaicSpec {
	return coverage.MosaicSpec{
		GridSize:  coverage.GridSize{Cols: 2, Rows: 2},
		TileSize:  coverage.TileSize{Width: 256, Height: 256},
		UpperLeft: []float64{0, 1000},
		Scale:     10,
	}
}

// addPyramidCoverage creates name in s with one pyramid per crs, each holding the given mosaic
// specs filled with tiles from tile.
func addPyramidCoverage(t *testing.T, s coverage.Store, name string, crs []coverage.CRS, specs []coverage.MosaicSpec, tile func(pos coverage.GridPosition) image.Image) {
	t.Helper()
	ctx := context.Background()
	ref, err := s.Create(ctx, name)
	require.NoError(t, err)
	pref := ref.(coverage.PyramidalReference)
	require.NoError(t, pref.SetSampleDimensions(ctx, elevation))
	for _, c := range crs {
		p, err := pref.CreatePyramid(ctx, c)
		require.NoError(t, err)
		for _, spec := range specs {
			m, err := pref.CreateMosaic(ctx, p.ID(), spec)
			require.NoError(t, err)
			for _, pos := range spec.Positions() {
				if img := tile(pos); img != nil {
					require.NoError(t, pref.WriteTile(ctx, p.ID(), m.ID(), pos.X, pos.Y, img))
				}
			}
		}
	}
}

// tileKey identifies a tile by pyramid CRS, mosaic scale and position.
type tileKey struct {
	CRS   string
	Scale float64
	Pos   coverage.GridPosition
}

type snapshot struct {
	Names   []string
	Dims    map[string][]coverage.SampleDimension
	Mosaics map[string][]string
	Tiles   map[string][]tileKey
}

// takeSnapshot reads back the full content of a pyramidal store.
func takeSnapshot(t *testing.T, s coverage.Store) snapshot {
	t.Helper()
	ctx := context.Background()
	names, err := s.Names(ctx)
	require.NoError(t, err)
	snap := snapshot{
		Names:   names,
		Dims:    map[string][]coverage.SampleDimension{},
		Mosaics: map[string][]string{},
		Tiles:   map[string][]tileKey{},
	}
	for _, name := range names {
		ref, err := s.Reference(ctx, name)
		require.NoError(t, err)
		pref := ref.(coverage.PyramidalReference)
		snap.Dims[name], err = pref.SampleDimensions(ctx)
		require.NoError(t, err)
		ps, err := pref.Pyramids(ctx)
		require.NoError(t, err)
		for _, p := range ps {
			ms, err := p.Mosaics(ctx)
			require.NoError(t, err)
			for _, m := range ms {
				spec := m.Spec()
				snap.Mosaics[name] = append(snap.Mosaics[name], fmt.Sprintf("%s %+v", p.CRS(), spec))
				ch, err := m.ReadTiles(ctx, spec.Positions(), 4)
				require.NoError(t, err)
				for r := range ch {
					if r.Kind == coverage.TileFound {
						snap.Tiles[name] = append(snap.Tiles[name], tileKey{CRS: p.CRS().Code, Scale: spec.Scale, Pos: r.Position})
					}
				}
			}
		}
		sort.Strings(snap.Mosaics[name])
		sort.Slice(snap.Tiles[name], func(i, j int) bool {
			a, b := snap.Tiles[name][i], snap.Tiles[name][j]
			if a.CRS != b.CRS {
				return a.CRS < b.CRS
			}
			if a.Scale != b.Scale {
				return a.Scale < b.Scale
			}
			if a.Pos.Y != b.Pos.Y {
				return a.Pos.Y < b.Pos.Y
			}
			return a.Pos.X < b.Pos.X
		})
	}
	return snap
}

// recorder is a Listener collecting events.
type recorder struct {
	mu     sync.Mutex
	events []coverage.Event
}

func (r *recorder) OnEvent(ctx context.Context, e coverage.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofKind(k coverage.EventKind) []coverage.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []coverage.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last() coverage.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func testOptions(l coverage.Listener) Options {
	o := DefaultOptions()
	o.Workers = 4
	o.QueueDepth = 2
	o.Listener = l
	return o
}

// wrappedStore substitutes the references handed out by a store.
type wrappedStore struct {
	coverage.Store
	wrap func(coverage.Reference) coverage.Reference
}

func (s wrappedStore) Reference(ctx context.Context, name string) (coverage.Reference, error) {
	r, err := s.Store.Reference(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.wrap(r), nil
}

func (s wrappedStore) Create(ctx context.Context, name string) (coverage.Reference, error) {
	r, err := s.Store.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.wrap(r), nil
}

var errDiskFull = errors.New("disk full")

// failingWriter fails the writes at one position and records the pixel buffer types it gets.
type failingWriter struct {
	coverage.PyramidalReference
	fail   *coverage.GridPosition
	mu     *sync.Mutex
	images *[]image.Image
}

func (w failingWriter) WriteTile(ctx context.Context, pyramidID, mosaicID coverage.UUID, x, y int, img image.Image) error {
	w.mu.Lock()
	*w.images = append(*w.images, img)
	w.mu.Unlock()
	if w.fail != nil && w.fail.X == x && w.fail.Y == y {
		return errDiskFull
	}
	return w.PyramidalReference.WriteTile(ctx, pyramidID, mosaicID, x, y, img)
}

func failingDestination(base coverage.Store, fail *coverage.GridPosition) (coverage.Store, *[]image.Image) {
	images := &[]image.Image{}
	mu := &sync.Mutex{}
	return wrappedStore{Store: base, wrap: func(r coverage.Reference) coverage.Reference {
		return failingWriter{PyramidalReference: r.(coverage.PyramidalReference), fail: fail, mu: mu, images: images}
	}}, images
}

// truncatingSource drops the EndOfStream marker of every tile stream.
type truncatingSource struct{ coverage.PyramidalReference }

func (r truncatingSource) Pyramids(ctx context.Context) ([]coverage.Pyramid, error) {
	ps, err := r.PyramidalReference.Pyramids(ctx)
	for i := range ps {
		ps[i] = truncatingPyramid{ps[i]}
	}
	return ps, err
}

type truncatingPyramid struct{ coverage.Pyramid }

func (p truncatingPyramid) Mosaics(ctx context.Context) ([]coverage.Mosaic, error) {
	ms, err := p.Pyramid.Mosaics(ctx)
	for i := range ms {
		ms[i] = truncatingMosaic{ms[i]}
	}
	return ms, err
}

type truncatingMosaic struct{ coverage.Mosaic }

func (m truncatingMosaic) ReadTiles(ctx context.Context, positions []coverage.GridPosition, depth int) (<-chan coverage.TileResult, error) {
	in, err := m.Mosaic.ReadTiles(ctx, positions, depth)
	if err != nil {
		return nil, err
	}
	out := make(chan coverage.TileResult, depth)
	go func() {
		defer close(out)
		for r := range in {
			if r.Kind != coverage.EndOfStream {
				out <- r
			}
		}
	}()
	return out, nil
}
