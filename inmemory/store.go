package inmemory

import (
	"context"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/geometry"
)

// Coverage is the content of an in-memory plain coverage: one image per slice, indexed in
// geometry.Slices order.
type Coverage struct {
	Geometry         coverage.GridGeometry
	SampleDimensions []coverage.SampleDimension
	Slices           []image.Image
}

// Store is an in-memory store of plain coverages. Names are kept in insertion order.
type Store struct {
	mu        sync.RWMutex
	names     []string
	coverages map[string]*Coverage
}

// NewStore instantiates an empty plain coverage store.
func NewStore() *Store {
	return &Store{coverages: make(map[string]*Coverage)}
}

// Put adds or replaces a coverage.
func (s *Store) Put(name string, c *Coverage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coverages[name]; !ok {
		s.names = append(s.names, name)
	}
	s.coverages[name] = c
}

func (s *Store) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names), nil
}

func (s *Store) Reference(ctx context.Context, name string) (coverage.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.coverages[name]; !ok {
		return nil, fmt.Errorf("coverage %q not found", name)
	}
	return &reference{store: s, name: name}, nil
}

// Create adds an empty coverage, or returns the existing one.
func (s *Store) Create(ctx context.Context, name string) (coverage.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coverages[name]; !ok {
		s.names = append(s.names, name)
		s.coverages[name] = &Coverage{}
	}
	return &reference{store: s, name: name}, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coverages[name]; !ok {
		return nil
	}
	delete(s.coverages, name)
	s.names = slices.DeleteFunc(s.names, func(n string) bool { return n == name })
	return nil
}

func (s *Store) get(name string) (*Coverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coverages[name]
	if !ok {
		return nil, fmt.Errorf("coverage %q was deleted", name)
	}
	return c, nil
}

type reference struct {
	store *Store
	name  string
}

func (r *reference) Name() string {
	return r.name
}

func (r *reference) SampleDimensions(ctx context.Context) ([]coverage.SampleDimension, error) {
	c, err := r.store.get(r.name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.SampleDimensions), nil
}

func (r *reference) Reader(ctx context.Context) (coverage.GridCoverageReader, error) {
	c, err := r.store.get(r.name)
	if err != nil {
		return nil, err
	}
	return &reader{coverage: c}, nil
}

type reader struct {
	coverage *Coverage
	closed   bool
}

func (r *reader) GridGeometry(ctx context.Context) (coverage.GridGeometry, error) {
	return r.coverage.Geometry, nil
}

func (r *reader) SampleDimensions(ctx context.Context) ([]coverage.SampleDimension, error) {
	return slices.Clone(r.coverage.SampleDimensions), nil
}

// Read returns the slice whose extra dimension values are the envelope's lower values.
func (r *reader) Read(ctx context.Context, envelope coverage.Envelope) (coverage.GridCoverage, error) {
	if r.closed {
		return coverage.GridCoverage{}, fmt.Errorf("reader is closed")
	}
	g := r.coverage.Geometry
	i := geometry.SliceIndex(g.Axes, envelope.Lower)
	if i < 0 || i >= len(r.coverage.Slices) || r.coverage.Slices[i] == nil {
		return coverage.GridCoverage{}, fmt.Errorf("no slice at %v", envelope.Lower)
	}
	return coverage.GridCoverage{
		Image:       r.coverage.Slices[i],
		Transform:   g.Transform,
		CRS:         g.CRS,
		SliceValues: slices.Clone(envelope.Lower),
	}, nil
}

func (r *reader) Close() error {
	r.closed = true
	return nil
}
