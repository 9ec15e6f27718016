// Package raster holds the pixel-buffer helpers shared by the stores and the replication engine:
// PNG tile codec, palette to direct color normalization and lazy tile decoding.
package raster
