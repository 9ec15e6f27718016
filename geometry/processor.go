package geometry

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/sharedcode/coverage"
)

// DefaultMaxPixels caps the size of a resampled output image.
const DefaultMaxPixels = 1 << 28

// Processor is the default coverage.Processor.
type Processor struct {
	// MaxPixels caps resampling output; 0 means DefaultMaxPixels.
	MaxPixels int
}

// NewProcessor returns the default straighten / reduce-to-domain processor.
func NewProcessor() *Processor {
	return &Processor{MaxPixels: DefaultMaxPixels}
}

func transformFailure(format string, args ...any) error {
	return coverage.Error{Code: coverage.TransformFailure, Err: fmt.Errorf(format, args...)}
}

// Straighten returns a north-up, axis-aligned equivalent of c. Axis-aligned transforms are
// handled by flipping; rotated or sheared ones are resampled (nearest neighbour) onto a grid
// whose pixel size is the smaller of the two source pixel edge lengths. Pixels outside the
// source footprint are transparent.
func (p *Processor) Straighten(ctx context.Context, c coverage.GridCoverage) (coverage.GridCoverage, error) {
	if c.Image == nil {
		return c, transformFailure("coverage has no image")
	}
	tr := c.Transform
	if _, err := tr.Inverse(); err != nil {
		return c, coverage.Error{Code: coverage.TransformFailure, Err: err}
	}
	b := c.Image.Bounds()
	if tr.IsAxisAligned() {
		if tr.ScaleX > 0 && tr.ScaleY < 0 {
			return c, nil
		}
		return flip(c), nil
	}

	pixel := math.Min(math.Hypot(tr.ScaleX, tr.ShearY), math.Hypot(tr.ShearX, tr.ScaleY))
	bound := tr.Bound(b.Dx(), b.Dy())
	w := int(math.Ceil((bound.Max[0] - bound.Min[0]) / pixel))
	h := int(math.Ceil((bound.Max[1] - bound.Min[1]) / pixel))
	limit := p.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if w <= 0 || h <= 0 || w*h > limit {
		return c, transformFailure("straightened size %dx%d out of range", w, h)
	}
	// Source pixel to destination pixel: through the CRS, then onto the north-up grid.
	a, bb := tr.ScaleX/pixel, tr.ShearX/pixel
	d, e := -tr.ShearY/pixel, -tr.ScaleY/pixel
	s2d := f64.Aff3{
		a, bb, (tr.TranslateX-bound.Min[0])/pixel - a*float64(b.Min.X) - bb*float64(b.Min.Y),
		d, e, (bound.Max[1]-tr.TranslateY)/pixel - d*float64(b.Min.X) - e*float64(b.Min.Y),
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Transform(dst, s2d, c.Image, b, draw.Src, nil)
	return coverage.GridCoverage{
		Image:       dst,
		Transform:   coverage.NorthUp(bound.Min[0], bound.Max[1], pixel),
		CRS:         c.CRS,
		SliceValues: c.SliceValues,
	}, nil
}

// flip mirrors an axis-aligned coverage so that ScaleX > 0 and ScaleY < 0.
func flip(c coverage.GridCoverage) coverage.GridCoverage {
	tr := c.Transform
	b := c.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	flipX, flipY := tr.ScaleX < 0, tr.ScaleY > 0
	s2d := f64.Aff3{1, 0, -float64(b.Min.X), 0, 1, -float64(b.Min.Y)}
	if flipX {
		s2d[0], s2d[2] = -1, float64(w+b.Min.X)
	}
	if flipY {
		s2d[4], s2d[5] = -1, float64(h+b.Min.Y)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Transform(dst, s2d, c.Image, b, draw.Src, nil)
	bound := tr.Bound(w, h)
	return coverage.GridCoverage{
		Image: dst,
		Transform: coverage.Affine{
			ScaleX:     math.Abs(tr.ScaleX),
			TranslateX: bound.Min[0],
			ScaleY:     -math.Abs(tr.ScaleY),
			TranslateY: bound.Max[1],
		},
		CRS:         c.CRS,
		SliceValues: c.SliceValues,
	}
}

// ReduceToDomain crops a straightened coverage to the bounding box of its non-transparent
// pixels. A coverage without any valid pixel is returned unchanged.
func (p *Processor) ReduceToDomain(ctx context.Context, c coverage.GridCoverage) (coverage.GridCoverage, error) {
	if c.Image == nil {
		return c, transformFailure("coverage has no image")
	}
	if !c.Transform.IsAxisAligned() {
		return c, transformFailure("reduce to domain requires a straightened coverage")
	}
	b := c.Image.Bounds()
	domain := image.Rectangle{}
	found := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := c.Image.At(x, y).RGBA(); a == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				domain, found = px, true
				continue
			}
			domain = domain.Union(px)
		}
	}
	if !found || domain == b {
		return c, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, domain.Dx(), domain.Dy()))
	draw.Draw(dst, dst.Bounds(), c.Image, domain.Min, draw.Src)

	off := domain.Min.Sub(b.Min)
	tr := c.Transform
	tr.TranslateX, tr.TranslateY = tr.Apply(float64(off.X), float64(off.Y))
	return coverage.GridCoverage{
		Image:       dst,
		Transform:   tr,
		CRS:         c.CRS,
		SliceValues: c.SliceValues,
	}, nil
}
