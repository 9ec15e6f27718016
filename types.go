package coverage

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
)

// CRSKind classifies a coordinate reference system.
type CRSKind int

const (
	Geographic CRSKind = iota
	Projected
	// Image is a pure grid CRS without real world georeferencing.
	Image
)

// CRS identifies a coordinate reference system by code, e.g. "EPSG:4326".
type CRS struct {
	Code string  `json:"code"`
	Kind CRSKind `json:"kind"`
}

// IsImage reports whether the CRS is an image (non georeferenced) CRS.
func (c CRS) IsImage() bool {
	return c.Kind == Image
}

// Equal compares by code.
func (c CRS) Equal(o CRS) bool {
	return c.Code == o.Code
}

func (c CRS) String() string {
	return c.Code
}

// Category names a value range of a sample dimension, e.g. "no data" or "water".
type Category struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// SampleDimension describes the semantics of one band.
type SampleDimension struct {
	Name       string     `json:"name"`
	Unit       string     `json:"unit,omitempty"`
	NoData     []float64  `json:"no_data,omitempty"`
	Min        float64    `json:"min"`
	Max        float64    `json:"max"`
	Categories []Category `json:"categories,omitempty"`
}

// GridPosition addresses a tile inside a mosaic.
type GridPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p GridPosition) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// GridSize is the number of tile columns and rows of a mosaic.
type GridSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Area returns the number of tiles.
func (g GridSize) Area() int64 {
	return int64(g.Cols) * int64(g.Rows)
}

// TileSize is a tile's size in pixels.
type TileSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MosaicSpec holds the tiling parameters of one mosaic.
type MosaicSpec struct {
	GridSize GridSize `json:"grid_size"`
	TileSize TileSize `json:"tile_size"`
	// UpperLeft is the corner in the pyramid CRS: min x, max y, then any fixed extra dimension values.
	UpperLeft []float64 `json:"upper_left"`
	// Scale is in ground units per pixel.
	Scale float64 `json:"scale"`
}

// Extent reconstructs the spatial extent as grid size × tile size × scale from the upper-left corner.
func (s MosaicSpec) Extent() orb.Bound {
	if len(s.UpperLeft) < 2 {
		return orb.Bound{}
	}
	w := float64(s.GridSize.Cols) * float64(s.TileSize.Width) * s.Scale
	h := float64(s.GridSize.Rows) * float64(s.TileSize.Height) * s.Scale
	minX, maxY := s.UpperLeft[0], s.UpperLeft[1]
	return orb.Bound{
		Min: orb.Point{minX, maxY - h},
		Max: orb.Point{minX + w, maxY},
	}
}

// Positions returns every grid position in row-major order, x fastest.
func (s MosaicSpec) Positions() []GridPosition {
	r := make([]GridPosition, 0, s.GridSize.Area())
	for y := 0; y < s.GridSize.Rows; y++ {
		for x := 0; x < s.GridSize.Cols; x++ {
			r = append(r, GridPosition{X: x, Y: y})
		}
	}
	return r
}

// Contains reports whether p lies in the grid.
func (s MosaicSpec) Contains(p GridPosition) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.GridSize.Cols && p.Y < s.GridSize.Rows
}

// Affine maps pixel corner coordinates (col, row) to CRS coordinates:
//
//	x = ScaleX*col + ShearX*row + TranslateX
//	y = ShearY*col + ScaleY*row + TranslateY
type Affine struct {
	ScaleX     float64 `json:"scale_x"`
	ShearX     float64 `json:"shear_x"`
	TranslateX float64 `json:"translate_x"`
	ShearY     float64 `json:"shear_y"`
	ScaleY     float64 `json:"scale_y"`
	TranslateY float64 `json:"translate_y"`
}

// NorthUp returns the axis-aligned transform of a raster whose upper-left corner is (minX, maxY)
// with square pixels of the given size.
func NorthUp(minX, maxY, pixelSize float64) Affine {
	return Affine{ScaleX: pixelSize, TranslateX: minX, ScaleY: -pixelSize, TranslateY: maxY}
}

// Apply transforms a grid coordinate.
func (a Affine) Apply(col, row float64) (float64, float64) {
	return a.ScaleX*col + a.ShearX*row + a.TranslateX, a.ShearY*col + a.ScaleY*row + a.TranslateY
}

// Determinant of the linear part.
func (a Affine) Determinant() float64 {
	return a.ScaleX*a.ScaleY - a.ShearX*a.ShearY
}

// Inverse returns the CRS to grid transform.
func (a Affine) Inverse() (Affine, error) {
	det := a.Determinant()
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Affine{}, fmt.Errorf("affine transform %+v is not invertible", a)
	}
	r := Affine{
		ScaleX: a.ScaleY / det,
		ShearX: -a.ShearX / det,
		ShearY: -a.ShearY / det,
		ScaleY: a.ScaleX / det,
	}
	r.TranslateX = -(r.ScaleX*a.TranslateX + r.ShearX*a.TranslateY)
	r.TranslateY = -(r.ShearY*a.TranslateX + r.ScaleY*a.TranslateY)
	return r, nil
}

// IsAxisAligned reports whether the transform has no rotation or shear.
func (a Affine) IsAxisAligned() bool {
	return a.ShearX == 0 && a.ShearY == 0
}

// Bound returns the CRS bounding box of a width × height grid.
func (a Affine) Bound(width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	x0, y0 := a.Apply(0, 0)
	b := orb.Bound{Min: orb.Point{x0, y0}, Max: orb.Point{x0, y0}}
	for _, c := range [][2]float64{{w, 0}, {0, h}, {w, h}} {
		x, y := a.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Axis is a non-spatial grid dimension with discrete values, e.g. time steps or elevations.
type Axis struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// GridGeometry describes a plain coverage grid. Spatial dimensions come first; Axes hold dimensions 3..N.
type GridGeometry struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Transform Affine `json:"transform"`
	CRS       CRS    `json:"crs"`
	Axes      []Axis `json:"axes,omitempty"`
}

// Envelope returns the full N-dimensional extent of the grid.
func (g GridGeometry) Envelope() Envelope {
	e := Envelope{
		CRS:   g.CRS,
		Bound: g.Transform.Bound(g.Width, g.Height),
		Lower: make([]float64, len(g.Axes)),
		Upper: make([]float64, len(g.Axes)),
	}
	for i, ax := range g.Axes {
		if len(ax.Values) == 0 {
			continue
		}
		e.Lower[i], e.Upper[i] = ax.Values[0], ax.Values[0]
		for _, v := range ax.Values[1:] {
			e.Lower[i] = math.Min(e.Lower[i], v)
			e.Upper[i] = math.Max(e.Upper[i], v)
		}
	}
	return e
}

// Envelope is a bounding region: a 2-D spatial bound plus ranges on the extra dimensions.
type Envelope struct {
	CRS   CRS
	Bound orb.Bound
	Lower []float64
	Upper []float64
}

// Dimension returns the number of dimensions.
func (e Envelope) Dimension() int {
	return 2 + len(e.Lower)
}

// IsSlice reports whether every extra dimension is fixed to a single value.
func (e Envelope) IsSlice() bool {
	for i := range e.Lower {
		if e.Lower[i] != e.Upper[i] {
			return false
		}
	}
	return true
}

// UpperLeft returns (min x, max y) followed by the lower value of every extra dimension.
func (e Envelope) UpperLeft() []float64 {
	r := make([]float64, 0, e.Dimension())
	r = append(r, e.Bound.Min[0], e.Bound.Max[1])
	return append(r, e.Lower...)
}

// GridCoverage is the 2-D result of a read: pixels plus their pixel-to-CRS mapping.
type GridCoverage struct {
	Image     image.Image
	Transform Affine
	CRS       CRS
	// SliceValues are the fixed values of the non-spatial dimensions.
	SliceValues []float64
}

// Envelope returns the slice envelope of the coverage.
func (c GridCoverage) Envelope() Envelope {
	b := c.Image.Bounds()
	lower := append([]float64(nil), c.SliceValues...)
	upper := append([]float64(nil), c.SliceValues...)
	return Envelope{
		CRS:   c.CRS,
		Bound: c.Transform.Bound(b.Dx(), b.Dy()),
		Lower: lower,
		Upper: upper,
	}
}
