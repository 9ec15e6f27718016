package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/sharedcode/coverage"
)

func paletted() *image.Paletted {
	p := color.Palette{color.NRGBA{0, 0, 0, 255}, color.NRGBA{200, 10, 10, 255}, color.NRGBA{0, 0, 0, 0}}
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), p)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetColorIndex(x, y, uint8((x+y)%3))
		}
	}
	return img
}

func TestToDirectKeepsVisualValues(t *testing.T) {
	src := paletted()
	if !IsIndexed(src) {
		t.Fatal("paletted image not detected as indexed")
	}
	dst := Normalize(src)
	if IsIndexed(dst) {
		t.Fatal("normalized image is still indexed")
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := color.NRGBAModel.Convert(src.At(x, y))
			got := color.NRGBAModel.Convert(dst.At(x, y))
			if want != got {
				t.Errorf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestToDirectRebasesOrigin(t *testing.T) {
	src := paletted().SubImage(image.Rect(1, 1, 3, 3))
	dst := ToDirect(src)
	if dst.Bounds().Min != (image.Point{}) || dst.Bounds().Dx() != 2 {
		t.Fatalf("unexpected bounds %v", dst.Bounds())
	}
	if color.NRGBAModel.Convert(src.At(1, 1)) != dst.At(0, 0) {
		t.Error("origin pixel not preserved")
	}
}

func TestNormalizeDirectIsNoop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if Normalize(src) != image.Image(src) {
		t.Error("direct image should be returned unchanged")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := ToDirect(paletted())
	ba, err := Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	tile := coverage.Tile{Position: coverage.GridPosition{X: 1}, Source: BytesSource(ba)}
	img, err := DecodeTile(context.Background(), tile)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != src.Bounds() {
		t.Fatalf("bounds %v, want %v", img.Bounds(), src.Bounds())
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if color.NRGBAModel.Convert(img.At(x, y)) != src.At(x, y) {
				t.Errorf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

type trackingSource struct {
	data     string
	closeErr error
	closed   bool
}

type trackingReader struct {
	io.Reader
	s *trackingSource
}

func (r *trackingReader) Close() error {
	r.s.closed = true
	return r.s.closeErr
}

func (s *trackingSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return &trackingReader{Reader: strings.NewReader(s.data), s: s}, nil
}

func TestDecodeTileReleasesSourceOnFailure(t *testing.T) {
	s := &trackingSource{data: "not a png", closeErr: errors.New("close boom")}
	_, err := DecodeTile(context.Background(), coverage.Tile{Source: s})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if !s.closed {
		t.Error("source reader was not closed")
	}
	if strings.Contains(err.Error(), "close boom") {
		t.Errorf("close error masked the decode error: %v", err)
	}
}

func TestDecodeTileCloseErrorDoesNotFailSuccess(t *testing.T) {
	ba, _ := Encode(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	s := &trackingSource{data: string(ba), closeErr: errors.New("close boom")}
	if _, err := DecodeTile(context.Background(), coverage.Tile{Source: s}); err != nil {
		t.Fatalf("close failure leaked into result: %v", err)
	}
	if !s.closed {
		t.Error("source reader was not closed")
	}
}
