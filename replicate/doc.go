// Package replicate copies every coverage of a source store into a pyramidal destination store.
//
// Pyramidal sources are streamed tile by tile through a pool of writers, keeping their tiling
// untouched. Plain sources are read slice by slice, straightened, optionally cropped to their
// valid data domain, and stored as one single-tile mosaic per slice.
package replicate
