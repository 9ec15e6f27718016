// Package geometry implements the grid helpers used when rebuilding pyramids from plain
// coverages: slice enumeration over non-spatial axes and the default straighten and
// reduce-to-domain processor.
package geometry

import (
	"iter"

	"github.com/sharedcode/coverage"
)

// Slices returns a lazy sequence of every combination of the grid's non-spatial axis values,
// each yielded as a 2-D envelope whose extra dimensions are fixed. The first axis varies
// slowest. A grid without extra axes yields its single 2-D envelope; an axis without values
// yields nothing. Each range over the sequence restarts the enumeration.
func Slices(g coverage.GridGeometry) iter.Seq[coverage.Envelope] {
	return func(yield func(coverage.Envelope) bool) {
		for _, ax := range g.Axes {
			if len(ax.Values) == 0 {
				return
			}
		}
		bound := g.Transform.Bound(g.Width, g.Height)
		idx := make([]int, len(g.Axes))
		for {
			values := make([]float64, len(g.Axes))
			for i, ax := range g.Axes {
				values[i] = ax.Values[idx[i]]
			}
			e := coverage.Envelope{
				CRS:   g.CRS,
				Bound: bound,
				Lower: values,
				Upper: append([]float64(nil), values...),
			}
			if !yield(e) {
				return
			}
			// Odometer increment, last axis fastest.
			i := len(idx) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < len(g.Axes[i].Values) {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// SliceCount returns the number of slices Slices yields.
func SliceCount(g coverage.GridGeometry) int {
	n := 1
	for _, ax := range g.Axes {
		n *= len(ax.Values)
	}
	return n
}

// SliceIndex returns the position, in Slices order, of the slice with the given axis values,
// or -1 when a value does not belong to its axis.
func SliceIndex(axes []coverage.Axis, values []float64) int {
	if len(values) != len(axes) {
		return -1
	}
	index := 0
	for i, ax := range axes {
		pos := -1
		for j, v := range ax.Values {
			if v == values[i] {
				pos = j
				break
			}
		}
		if pos < 0 {
			return -1
		}
		index = index*len(ax.Values) + pos
	}
	return index
}
