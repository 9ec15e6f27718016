package tilestore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/encoding"
)

// Options configures a Store.
type Options struct {
	// TablePrefix is prepended to the catalog and tiles table names, allowing several stores
	// to share one blob store.
	TablePrefix string
	// Marshaler encodes catalog documents; nil means encoding.DefaultMarshaler.
	Marshaler encoding.Marshaler
}

// Store is a pyramidal coverage store persisted in a blob store.
type Store struct {
	blobs        coverage.BlobStore
	marshaler    encoding.Marshaler
	catalogTable string
	tilesTable   string
	namespace    coverage.UUID

	mu    sync.RWMutex
	cache map[string]*coverageInfo
}

// NewStore returns a Store over blobs.
func NewStore(blobs coverage.BlobStore, opts Options) *Store {
	m := opts.Marshaler
	if m == nil {
		m = encoding.DefaultMarshaler
	}
	return &Store{
		blobs:        blobs,
		marshaler:    m,
		catalogTable: opts.TablePrefix + "coverages",
		tilesTable:   opts.TablePrefix + "tiles",
		namespace:    coverage.NameUUID(coverage.NilUUID, opts.TablePrefix),
		cache:        make(map[string]*coverageInfo),
	}
}

// Names returns the coverage names in creation order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coverageList(ctx)
}

// Reference returns the named coverage.
func (s *Store) Reference(ctx context.Context, name string) (coverage.Reference, error) {
	if err := s.view(ctx, name, func(*coverageInfo) error { return nil }); err != nil {
		return nil, err
	}
	return &reference{store: s, name: name}, nil
}

// Create adds an empty coverage. Creating an existing coverage returns it unchanged.
func (s *Store) Create(ctx context.Context, name string) (coverage.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci, err := s.info(ctx, name)
	if err != nil {
		return nil, err
	}
	if ci == nil {
		ci = &coverageInfo{Name: name}
		if err := s.putDoc(ctx, s.coverageInfoID(name), ci); err != nil {
			return nil, err
		}
		s.cache[name] = ci
	}
	names, err := s.coverageList(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, name) {
		if err := s.putDoc(ctx, s.coverageListID(), append(names, name)); err != nil {
			return nil, err
		}
	}
	return &reference{store: s, name: name}, nil
}

// Delete removes the coverage, all of its tiles and its catalog entries. Deleting a missing
// coverage is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci, err := s.info(ctx, name)
	if err != nil {
		return err
	}
	if ci != nil {
		var tiles []coverage.UUID
		for _, p := range ci.Pyramids {
			for _, m := range p.Mosaics {
				for _, pos := range m.Spec.Positions() {
					tiles = append(tiles, tileID(m.ID, pos.X, pos.Y))
				}
			}
		}
		payload := []coverage.BlobsPayload[coverage.UUID]{
			{BlobTable: s.tilesTable, Blobs: tiles},
			{BlobTable: s.catalogTable, Blobs: []coverage.UUID{s.coverageInfoID(name)}},
		}
		if err := s.blobs.Remove(ctx, payload); err != nil {
			return fmt.Errorf("removing coverage %q: %w", name, err)
		}
		delete(s.cache, name)
	}
	names, err := s.coverageList(ctx)
	if err != nil {
		return err
	}
	if i := slices.Index(names, name); i >= 0 {
		return s.putDoc(ctx, s.coverageListID(), slices.Delete(names, i, i+1))
	}
	return nil
}
