// Package worldfile stores plain coverages on disk: each coverage is a folder holding a JSON
// descriptor (grid geometry, sample dimensions, slice files) and one PNG image per slice.
package worldfile

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/encoding"
	"github.com/sharedcode/coverage/fs"
	"github.com/sharedcode/coverage/geometry"
	"github.com/sharedcode/coverage/raster"
)

// DescriptorFile is the name of the descriptor inside a coverage folder.
const DescriptorFile = "coverage.json"

const permission os.FileMode = os.ModeSticky | os.ModePerm

type descriptor struct {
	Geometry         coverage.GridGeometry      `json:"geometry"`
	SampleDimensions []coverage.SampleDimension `json:"sample_dimensions,omitempty"`
	// Slices are file names relative to the coverage folder, in geometry.Slices order.
	Slices []string `json:"slices"`
}

// Store is a folder of plain coverages.
type Store struct {
	root   string
	fileIO fs.FileIO
}

// NewStore returns the store rooted at root. A nil fileIO means fs.NewFileIO().
func NewStore(root string, fileIO fs.FileIO) *Store {
	if fileIO == nil {
		fileIO = fs.NewFileIO()
	}
	return &Store{root: root, fileIO: fileIO}
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid coverage name %q", name)
	}
	return nil
}

func (s *Store) folder(name string) string {
	return filepath.Join(s.root, name)
}

// Names lists the folders holding a descriptor, sorted by name.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	if !s.fileIO.Exists(ctx, s.root) {
		return nil, nil
	}
	entries, err := s.fileIO.ReadDir(ctx, s.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && s.fileIO.Exists(ctx, filepath.Join(s.root, e.Name(), DescriptorFile)) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *Store) readDescriptor(ctx context.Context, name string) (descriptor, error) {
	var d descriptor
	if err := validName(name); err != nil {
		return d, err
	}
	ba, err := s.fileIO.ReadFile(ctx, filepath.Join(s.folder(name), DescriptorFile))
	if err != nil {
		return d, fmt.Errorf("reading coverage %q: %w", name, err)
	}
	if err := encoding.Unmarshal(ba, &d); err != nil {
		return d, fmt.Errorf("decoding descriptor of coverage %q: %w", name, err)
	}
	for _, f := range d.Slices {
		if !filepath.IsLocal(f) {
			return d, fmt.Errorf("coverage %q: slice file %q is outside the coverage folder", name, f)
		}
	}
	return d, nil
}

func (s *Store) writeDescriptor(ctx context.Context, name string, d descriptor) error {
	ba, err := encoding.Marshal(d)
	if err != nil {
		return err
	}
	return s.fileIO.WriteFile(ctx, filepath.Join(s.folder(name), DescriptorFile), ba, permission)
}

func (s *Store) Reference(ctx context.Context, name string) (coverage.Reference, error) {
	if _, err := s.readDescriptor(ctx, name); err != nil {
		return nil, err
	}
	return &reference{store: s, name: name}, nil
}

// Create writes an empty descriptor unless the coverage exists.
func (s *Store) Create(ctx context.Context, name string) (coverage.Reference, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if !s.fileIO.Exists(ctx, filepath.Join(s.folder(name), DescriptorFile)) {
		if err := s.writeDescriptor(ctx, name, descriptor{}); err != nil {
			return nil, err
		}
	}
	return &reference{store: s, name: name}, nil
}

// Delete removes the coverage folder.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.fileIO.RemoveAll(ctx, s.folder(name))
}

// Put writes a coverage: one PNG per slice, in geometry.Slices order, then the descriptor.
func (s *Store) Put(ctx context.Context, name string, g coverage.GridGeometry, dims []coverage.SampleDimension, slices []image.Image) error {
	if err := validName(name); err != nil {
		return err
	}
	if n := geometry.SliceCount(g); n != len(slices) {
		return fmt.Errorf("coverage %q has %d slice(s), got %d image(s)", name, n, len(slices))
	}
	d := descriptor{Geometry: g, SampleDimensions: dims, Slices: make([]string, len(slices))}
	for i, img := range slices {
		ba, err := raster.Encode(img)
		if err != nil {
			return err
		}
		d.Slices[i] = fmt.Sprintf("slice_%04d.png", i)
		if err := s.fileIO.WriteFile(ctx, filepath.Join(s.folder(name), d.Slices[i]), ba, permission); err != nil {
			return err
		}
	}
	return s.writeDescriptor(ctx, name, d)
}

type reference struct {
	store *Store
	name  string
}

func (r *reference) Name() string {
	return r.name
}

func (r *reference) SampleDimensions(ctx context.Context) ([]coverage.SampleDimension, error) {
	d, err := r.store.readDescriptor(ctx, r.name)
	if err != nil {
		return nil, err
	}
	return d.SampleDimensions, nil
}

func (r *reference) Reader(ctx context.Context) (coverage.GridCoverageReader, error) {
	d, err := r.store.readDescriptor(ctx, r.name)
	if err != nil {
		return nil, err
	}
	return &reader{store: r.store, name: r.name, descriptor: d}, nil
}

// reader serves slices from the descriptor captured when it was opened.
type reader struct {
	store      *Store
	name       string
	descriptor descriptor
}

func (r *reader) GridGeometry(ctx context.Context) (coverage.GridGeometry, error) {
	return r.descriptor.Geometry, nil
}

func (r *reader) SampleDimensions(ctx context.Context) ([]coverage.SampleDimension, error) {
	return r.descriptor.SampleDimensions, nil
}

func (r *reader) Read(ctx context.Context, envelope coverage.Envelope) (coverage.GridCoverage, error) {
	g := r.descriptor.Geometry
	i := geometry.SliceIndex(g.Axes, envelope.Lower)
	if i < 0 || i >= len(r.descriptor.Slices) {
		return coverage.GridCoverage{}, fmt.Errorf("coverage %q has no slice at %v", r.name, envelope.Lower)
	}
	ba, err := r.store.fileIO.ReadFile(ctx, filepath.Join(r.store.folder(r.name), r.descriptor.Slices[i]))
	if err != nil {
		return coverage.GridCoverage{}, err
	}
	img, err := raster.Decode(bytes.NewReader(ba))
	if err != nil {
		return coverage.GridCoverage{}, fmt.Errorf("slice %s of coverage %q: %w", r.descriptor.Slices[i], r.name, err)
	}
	return coverage.GridCoverage{
		Image:       img,
		Transform:   g.Transform,
		CRS:         g.CRS,
		SliceValues: append([]float64(nil), envelope.Lower...),
	}, nil
}

func (r *reader) Close() error {
	return nil
}
