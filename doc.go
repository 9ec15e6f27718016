// Package coverage defines the core types, collaborator interfaces and shared helpers used to
// replicate pyramidal raster coverages between storage backends.
//
// A coverage store is a named collection of coverage references. A reference is either
// pyramidal (tiles organized in pyramids of mosaics) or plain (a single grid read through a
// reader). The replicate package copies every coverage of a source store into a destination
// store, streaming tiles directly when both sides are pyramidal, or rebuilding a pyramid from
// the plain source otherwise.
//
// Concrete backends live in subpackages: tilestore (pyramids persisted through any BlobStore),
// fs (file system), redis, aws_s3 and cassandra blob stores, inmemory and worldfile plain stores.
package coverage
