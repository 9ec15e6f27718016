package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	log "log/slog"

	"github.com/sharedcode/coverage"
)

// Encode encodes img as PNG, the tile payload format of the blob-backed stores.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding tile: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes a PNG tile payload.
func Decode(r io.Reader) (image.Image, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding tile: %w", err)
	}
	return img, nil
}

// BytesSource is a TileSource over an encoded payload held in memory.
type BytesSource []byte

// Open returns a reader over the payload.
func (s BytesSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s)), nil
}

// DecodeTile returns the tile's pixel buffer, decoding its Source when the tile is lazy.
// The source reader is closed before returning, whatever the decode outcome; a close failure is
// logged and never replaces the decode result.
func DecodeTile(ctx context.Context, tile coverage.Tile) (img image.Image, err error) {
	if tile.Image != nil {
		return tile.Image, nil
	}
	if tile.Source == nil {
		return nil, fmt.Errorf("tile %s has neither pixels nor source", tile.Position)
	}
	rc, err := tile.Source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening tile %s: %w", tile.Position, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			log.Warn("failed closing tile reader", "tile", tile.Position.String(), "error", cerr)
		}
	}()
	return Decode(rc)
}
