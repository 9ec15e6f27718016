// Package tilestore implements a pyramidal coverage.Store on top of any coverage.BlobStore.
//
// Two blob tables are used. The catalog table holds the coverage list document and one
// coverage info document per coverage (sample dimensions, pyramids and mosaic specs). The
// tiles table holds PNG encoded tiles whose blob ID derives from the mosaic ID and the tile
// position, so writes are idempotent and need no catalog update.
package tilestore
