package replicate

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/inmemory"
	"github.com/sharedcode/coverage/raster"
)

func fullTiles(pos coverage.GridPosition) image.Image {
	return solidTile(256, 256, color.NRGBA{R: uint8(10 * pos.X), G: uint8(10 * pos.Y), B: 200, A: 255})
}

func TestReplicatePyramidsAreComplete(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	specs := []coverage.MosaicSpec{mosaic2x2(), {
		GridSize:  coverage.GridSize{Cols: 1, Rows: 1},
		TileSize:  coverage.TileSize{Width: 256, Height: 256},
		UpperLeft: []float64{0, 1000},
		Scale:     20,
	}}
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator, wgs84}, specs, func(pos coverage.GridPosition) image.Image {
		if pos == (coverage.GridPosition{X: 0, Y: 1}) {
			return nil
		}
		return fullTiles(pos)
	})
	addPyramidCoverage(t, src, "slope", []coverage.CRS{webMercator}, specs[:1], fullTiles)

	rec := &recorder{}
	dst := newPyramidStore()
	require.NoError(t, New(testOptions(rec)).Replicate(ctx, src, dst))

	want := takeSnapshot(t, src)
	got := takeSnapshot(t, dst)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"dem", "slope"}, got.Names)
	assert.Len(t, got.Tiles["dem"], 2*(3+1))
	assert.Len(t, got.Tiles["slope"], 4)
	assert.Empty(t, rec.ofKind(coverage.Warning), "missing tiles are not warnings")
	assert.Empty(t, rec.ofKind(coverage.Failure))
}

func TestReplicateCopiesPixels(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	dst := newPyramidStore()
	require.NoError(t, New(testOptions(nil)).Replicate(ctx, src, dst))

	for _, pos := range mosaic2x2().Positions() {
		img := readTile(t, dst, "dem", pos)
		assert.Equal(t, image.Rect(0, 0, 256, 256), img.Bounds())
		assert.Equal(t, color.NRGBA{R: uint8(10 * pos.X), G: uint8(10 * pos.Y), B: 200, A: 255},
			color.NRGBAModel.Convert(img.At(100, 100)), "tile %s", pos)
	}
}

func TestReplicateTileWriteFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	base := newPyramidStore()
	dst, _ := failingDestination(base, &coverage.GridPosition{X: 1, Y: 1})
	rec := &recorder{}
	require.NoError(t, New(testOptions(rec)).Replicate(ctx, src, dst))

	snap := takeSnapshot(t, base)
	assert.ElementsMatch(t, []tileKey{
		{CRS: webMercator.Code, Scale: 10, Pos: coverage.GridPosition{X: 0, Y: 0}},
		{CRS: webMercator.Code, Scale: 10, Pos: coverage.GridPosition{X: 1, Y: 0}},
		{CRS: webMercator.Code, Scale: 10, Pos: coverage.GridPosition{X: 0, Y: 1}},
	}, snap.Tiles["dem"])

	warnings := rec.ofKind(coverage.Warning)
	require.Len(t, warnings, 1)
	w := warnings[0]
	require.NotNil(t, w.Position)
	assert.Equal(t, coverage.GridPosition{X: 1, Y: 1}, *w.Position)
	assert.Equal(t, "dem", w.Coverage)
	assert.True(t, coverage.HasCode(w.Err, coverage.TileWriteFailure))
	assert.ErrorIs(t, w.Err, errDiskFull)

	last := rec.last()
	assert.True(t, last.Final)
	assert.Equal(t, coverage.Progress, last.Kind)
	assert.Equal(t, 100.0, last.Percent)
}

func TestReplicateEraseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	once := newPyramidStore()
	opts := testOptions(nil)
	opts.Erase = true
	require.NoError(t, New(opts).Replicate(ctx, src, once))

	twice := newPyramidStore()
	require.NoError(t, New(opts).Replicate(ctx, src, twice))
	require.NoError(t, New(opts).Replicate(ctx, src, twice))
	assert.Equal(t, takeSnapshot(t, once), takeSnapshot(t, twice))

	// Without erase the second run adds its mosaics next to the existing ones.
	opts.Erase = false
	require.NoError(t, New(opts).Replicate(ctx, src, twice))
	assert.Len(t, takeSnapshot(t, twice).Mosaics["dem"], 2)
}

func TestReplicateNormalizesIndexedTiles(t *testing.T) {
	ctx := context.Background()
	palette := color.Palette{color.NRGBA{R: 255, A: 255}, color.NRGBA{B: 255, A: 255}}
	src := newPyramidStore()
	addPyramidCoverage(t, src, "landuse", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, func(pos coverage.GridPosition) image.Image {
		img := image.NewPaletted(image.Rect(0, 0, 256, 256), palette)
		for y := 0; y < 256; y++ {
			for x := 0; x < 256; x++ {
				img.SetColorIndex(x, y, uint8((x+pos.X)%2))
			}
		}
		return img
	})

	base := newPyramidStore()
	dst, written := failingDestination(base, nil)
	require.NoError(t, New(testOptions(nil)).Replicate(ctx, src, dst))

	require.Len(t, *written, 4)
	for _, img := range *written {
		assert.False(t, raster.IsIndexed(img))
	}
	img := readTile(t, base, "landuse", coverage.GridPosition{X: 1, Y: 0})
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, color.NRGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, color.NRGBAModel.Convert(img.At(1, 0)))
}

func TestReplicateProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	big := coverage.MosaicSpec{
		GridSize:  coverage.GridSize{Cols: 4, Rows: 4},
		TileSize:  coverage.TileSize{Width: 16, Height: 16},
		UpperLeft: []float64{0, 1000},
		Scale:     10,
	}
	small := func(pos coverage.GridPosition) image.Image {
		return solidTile(16, 16, color.NRGBA{R: 1, A: 255})
	}
	addPyramidCoverage(t, src, "a", []coverage.CRS{webMercator}, []coverage.MosaicSpec{big}, small)
	addPyramidCoverage(t, src, "b", []coverage.CRS{webMercator}, []coverage.MosaicSpec{big}, small)

	rec := &recorder{}
	opts := testOptions(rec)
	opts.Workers = 8
	require.NoError(t, New(opts).Replicate(ctx, src, newPyramidStore()))

	progress := rec.ofKind(coverage.Progress)
	require.NotEmpty(t, progress)
	completed := map[string]int64{}
	percent := 0.0
	for _, e := range progress {
		assert.GreaterOrEqual(t, e.Percent, percent)
		percent = e.Percent
		if e.Total > 0 {
			assert.GreaterOrEqual(t, e.Completed, completed[e.Coverage])
			assert.LessOrEqual(t, e.Completed, e.Total)
			assert.GreaterOrEqual(t, e.ETA.Nanoseconds(), int64(0))
			completed[e.Coverage] = e.Completed
		}
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, map[string]int64{"a": 16, "b": 16}, completed)

	last := progress[len(progress)-1]
	assert.True(t, last.Final)
	assert.Equal(t, 100.0, last.Percent)
	for _, e := range progress[:len(progress)-1] {
		assert.False(t, e.Final)
	}
}

func TestReplicateRejectsPlainDestination(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	rec := &recorder{}
	err := New(testOptions(rec)).Replicate(ctx, src, inmemory.NewStore())
	require.Error(t, err)
	assert.True(t, coverage.HasCode(err, coverage.UnsupportedDestination))
	assert.Contains(t, err.Error(), `"dem"`)

	failures := rec.ofKind(coverage.Failure)
	require.Len(t, failures, 1)
	assert.True(t, failures[0].Final)
	assert.Equal(t, "dem", failures[0].Coverage)
	assert.Equal(t, failures[0], rec.last())
}

func TestReplicateCopiesSampleDimensions(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	dst := newPyramidStore()
	require.NoError(t, New(testOptions(nil)).Replicate(ctx, src, dst))
	assert.Equal(t, elevation, takeSnapshot(t, dst).Dims["dem"])
}

func TestReplicateFilter(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	for _, name := range []string{"dem_2020", "landuse", "dem_2021"} {
		addPyramidCoverage(t, src, name, []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)
	}

	dst := newPyramidStore()
	opts := testOptions(nil)
	opts.Filter = NameFilterFunc(func(name string) (bool, error) {
		return strings.HasPrefix(name, "dem_"), nil
	})
	require.NoError(t, New(opts).Replicate(ctx, src, dst))
	names, err := dst.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dem_2020", "dem_2021"}, names)

	rec := &recorder{}
	opts.Listener = rec
	opts.Filter = NameFilterFunc(func(name string) (bool, error) {
		return false, errors.New("bad expression")
	})
	err = New(opts).Replicate(ctx, src, newPyramidStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad expression")
	assert.True(t, rec.last().Final)
	assert.Equal(t, coverage.Failure, rec.last().Kind)
}

func TestReplicateStopsOnCancel(t *testing.T) {
	src := newPyramidStore()
	addPyramidCoverage(t, src, "first", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)
	addPyramidCoverage(t, src, "second", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{}
	listener := coverage.NewMultiListener(rec, coverage.ListenerFunc(func(ctx context.Context, e coverage.Event) {
		if e.Coverage == "first" && e.Total > 0 && e.Completed == e.Total {
			cancel()
		}
	}))

	dst := newPyramidStore()
	err := New(testOptions(listener)).Replicate(ctx, src, dst)
	require.ErrorIs(t, err, context.Canceled)

	names, nerr := dst.Names(context.Background())
	require.NoError(t, nerr)
	assert.Equal(t, []string{"first"}, names)
	assert.Len(t, takeSnapshot(t, dst).Tiles["first"], 4)
	assert.Equal(t, coverage.Failure, rec.last().Kind)
	assert.True(t, rec.last().Final)
}

func TestReplicateTruncatedStreamIsAWarning(t *testing.T) {
	ctx := context.Background()
	base := newPyramidStore()
	addPyramidCoverage(t, base, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)
	src := wrappedStore{Store: base, wrap: func(r coverage.Reference) coverage.Reference {
		return truncatingSource{r.(coverage.PyramidalReference)}
	}}

	rec := &recorder{}
	dst := newPyramidStore()
	require.NoError(t, New(testOptions(rec)).Replicate(ctx, src, dst))

	warnings := rec.ofKind(coverage.Warning)
	require.Len(t, warnings, 1)
	assert.True(t, coverage.HasCode(warnings[0].Err, coverage.TileStreamFailure))
	assert.Nil(t, warnings[0].Position)
	assert.Len(t, takeSnapshot(t, dst).Tiles["dem"], 4)
}

func TestReplicateSurvivesPanickingListener(t *testing.T) {
	ctx := context.Background()
	src := newPyramidStore()
	addPyramidCoverage(t, src, "dem", []coverage.CRS{webMercator}, []coverage.MosaicSpec{mosaic2x2()}, fullTiles)

	dst := newPyramidStore()
	opts := testOptions(coverage.ListenerFunc(func(ctx context.Context, e coverage.Event) {
		panic("listener bug")
	}))
	require.NoError(t, New(opts).Replicate(ctx, src, dst))
	assert.Len(t, takeSnapshot(t, dst).Tiles["dem"], 4)
}

func TestReplicateEmptySource(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, New(testOptions(rec)).Replicate(context.Background(), newPyramidStore(), newPyramidStore()))
	require.Len(t, rec.events, 1)
	assert.True(t, rec.last().Final)
	assert.Equal(t, 100.0, rec.last().Percent)
}

// readTile decodes the tile at pos of the first mosaic of the first pyramid of name.
func readTile(t *testing.T, s coverage.Store, name string, pos coverage.GridPosition) image.Image {
	t.Helper()
	ctx := context.Background()
	ref, err := s.Reference(ctx, name)
	require.NoError(t, err)
	ps, err := ref.(coverage.PyramidalReference).Pyramids(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ps)
	ms, err := ps[0].Mosaics(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	ch, err := ms[0].ReadTiles(ctx, []coverage.GridPosition{pos}, 1)
	require.NoError(t, err)
	var img image.Image
	for r := range ch {
		if r.Kind == coverage.TileFound {
			img, err = raster.DecodeTile(ctx, r.Tile)
			require.NoError(t, err)
		}
	}
	require.NotNil(t, img, "no tile at %s", pos)
	return img
}
