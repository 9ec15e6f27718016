package coverage

import (
	"context"
	"image"
	"io"
)

// Store is a named collection of coverage references.
type Store interface {
	// Names lists the coverage names in the store's natural order.
	Names(ctx context.Context) ([]string, error)
	// Reference returns the named coverage reference.
	Reference(ctx context.Context, name string) (Reference, error)
	// Create creates a new, empty reference with the given name.
	Create(ctx context.Context, name string) (Reference, error)
	// Delete removes the named reference. Deleting a missing reference is not an error.
	Delete(ctx context.Context, name string) error
}

// Reference is one raster dataset inside a store. Implementations are either a
// PyramidalReference or a PlainReference.
type Reference interface {
	Name() string
	SampleDimensions(ctx context.Context) ([]SampleDimension, error)
}

// PyramidalReference exposes a pyramid set and supports creating pyramids, mosaics and tiles.
type PyramidalReference interface {
	Reference
	SetSampleDimensions(ctx context.Context, dims []SampleDimension) error
	Pyramids(ctx context.Context) ([]Pyramid, error)
	// CreatePyramid returns the pyramid for crs, creating it when none exists for that CRS.
	CreatePyramid(ctx context.Context, crs CRS) (Pyramid, error)
	CreateMosaic(ctx context.Context, pyramidID UUID, spec MosaicSpec) (Mosaic, error)
	// WriteTile stores the tile at (x, y). Safe for concurrent use; writes may arrive in any order.
	WriteTile(ctx context.Context, pyramidID UUID, mosaicID UUID, x, y int, img image.Image) error
}

// PlainReference exposes a single reader over one grid geometry.
type PlainReference interface {
	Reference
	Reader(ctx context.Context) (GridCoverageReader, error)
}

// GridCoverageReader reads 2-D slices of a plain coverage.
type GridCoverageReader interface {
	GridGeometry(ctx context.Context) (GridGeometry, error)
	SampleDimensions(ctx context.Context) ([]SampleDimension, error)
	// Read returns the data of the given slice envelope.
	Read(ctx context.Context, envelope Envelope) (GridCoverage, error)
	Close() error
}

// Pyramid is a set of mosaics of the same data in one CRS.
type Pyramid interface {
	ID() UUID
	CRS() CRS
	Mosaics(ctx context.Context) ([]Mosaic, error)
}

// Mosaic is one resolution level: a grid of tiles.
type Mosaic interface {
	ID() UUID
	Spec() MosaicSpec
	// ReadTiles streams the tiles at positions through a channel of capacity depth. The stream
	// is terminated by a TileResult of kind EndOfStream, after which the channel is closed.
	ReadTiles(ctx context.Context, positions []GridPosition, depth int) (<-chan TileResult, error)
}

// TileSource is a lazily decoded tile payload. The returned reader must be closed by the caller.
type TileSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Tile is the unit of transfer. Exactly one of Image or Source is set.
type Tile struct {
	Position GridPosition
	Image    image.Image
	Source   TileSource
}

// TileResultKind discriminates TileResult.
type TileResultKind int

const (
	// TileFound carries a tile.
	TileFound TileResultKind = iota
	// TileMissing means no tile exists at the position.
	TileMissing
	// TileFailed means the tile could not be read; Err holds the cause.
	TileFailed
	// EndOfStream terminates the stream.
	EndOfStream
)

// TileResult is one element of a tile stream.
type TileResult struct {
	Kind     TileResultKind
	Position GridPosition
	Tile     Tile
	Err      error
}

// Processor normalizes grid coverages before they are stored as mosaics.
type Processor interface {
	// Straighten returns an equivalent coverage whose transform has no rotation or shear and a
	// negative ScaleY (north up).
	Straighten(ctx context.Context, c GridCoverage) (GridCoverage, error)
	// ReduceToDomain crops the coverage to the region holding valid data.
	ReduceToDomain(ctx context.Context, c GridCoverage) (GridCoverage, error)
}
