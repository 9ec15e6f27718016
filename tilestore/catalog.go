package tilestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharedcode/coverage"
)

const coverageListName = "__coverage_list__"

type coverageInfo struct {
	Name             string                     `json:"name"`
	SampleDimensions []coverage.SampleDimension `json:"sample_dimensions,omitempty"`
	Pyramids         []pyramidInfo              `json:"pyramids,omitempty"`
}

type pyramidInfo struct {
	ID      coverage.UUID `json:"id"`
	CRS     coverage.CRS  `json:"crs"`
	Mosaics []mosaicInfo  `json:"mosaics,omitempty"`
}

type mosaicInfo struct {
	ID   coverage.UUID       `json:"id"`
	Spec coverage.MosaicSpec `json:"spec"`
}

func (ci *coverageInfo) pyramid(id coverage.UUID) *pyramidInfo {
	for i := range ci.Pyramids {
		if ci.Pyramids[i].ID == id {
			return &ci.Pyramids[i]
		}
	}
	return nil
}

func (pi *pyramidInfo) mosaic(id coverage.UUID) *mosaicInfo {
	for i := range pi.Mosaics {
		if pi.Mosaics[i].ID == id {
			return &pi.Mosaics[i]
		}
	}
	return nil
}

func (s *Store) coverageListID() coverage.UUID {
	return coverage.NameUUID(s.namespace, coverageListName)
}

func (s *Store) coverageInfoID(name string) coverage.UUID {
	return coverage.NameUUID(s.namespace, "coverage:"+name)
}

func tileID(mosaicID coverage.UUID, x, y int) coverage.UUID {
	return coverage.NameUUID(mosaicID, fmt.Sprintf("%d,%d", x, y))
}

// getDoc reads and decodes a catalog document. found is false when the blob does not exist.
func (s *Store) getDoc(ctx context.Context, id coverage.UUID, v any) (found bool, err error) {
	ba, err := s.blobs.GetOne(ctx, s.catalogTable, id)
	if errors.Is(err, coverage.ErrBlobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.marshaler.Unmarshal(ba, v); err != nil {
		return false, fmt.Errorf("decoding catalog document %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) putDoc(ctx context.Context, id coverage.UUID, v any) error {
	ba, err := s.marshaler.Marshal(v)
	if err != nil {
		return err
	}
	return s.blobs.Add(ctx, []coverage.BlobsPayload[coverage.KeyValuePair[coverage.UUID, []byte]]{{
		BlobTable: s.catalogTable,
		Blobs:     []coverage.KeyValuePair[coverage.UUID, []byte]{{Key: id, Value: ba}},
	}})
}

// coverageList returns the persisted coverage names. Callers hold s.mu.
func (s *Store) coverageList(ctx context.Context) ([]string, error) {
	var names []string
	if _, err := s.getDoc(ctx, s.coverageListID(), &names); err != nil {
		return nil, err
	}
	return names, nil
}

// info returns the cached or persisted coverage info. Callers hold s.mu.
func (s *Store) info(ctx context.Context, name string) (*coverageInfo, error) {
	if ci, ok := s.cache[name]; ok {
		return ci, nil
	}
	ci := &coverageInfo{}
	found, err := s.getDoc(ctx, s.coverageInfoID(name), ci)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	s.cache[name] = ci
	return ci, nil
}

// update applies f to the coverage info under the write lock and persists the result.
func (s *Store) update(ctx context.Context, name string, f func(ci *coverageInfo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci, err := s.info(ctx, name)
	if err != nil {
		return err
	}
	if ci == nil {
		return fmt.Errorf("coverage %q not found", name)
	}
	updated := cloneInfo(ci)
	if err := f(updated); err != nil {
		return err
	}
	if err := s.putDoc(ctx, s.coverageInfoID(name), updated); err != nil {
		return err
	}
	s.cache[name] = updated
	return nil
}

// view runs f on the coverage info under the read lock.
func (s *Store) view(ctx context.Context, name string, f func(ci *coverageInfo) error) error {
	s.mu.RLock()
	ci, ok := s.cache[name]
	s.mu.RUnlock()
	if !ok {
		// Cache miss needs the write lock to populate.
		s.mu.Lock()
		var err error
		ci, err = s.info(ctx, name)
		s.mu.Unlock()
		if err != nil {
			return err
		}
	}
	if ci == nil {
		return fmt.Errorf("coverage %q not found", name)
	}
	// Cached infos are replaced, never mutated, so ci is safe to read without the lock.
	return f(ci)
}

func cloneInfo(ci *coverageInfo) *coverageInfo {
	r := &coverageInfo{
		Name:             ci.Name,
		SampleDimensions: append([]coverage.SampleDimension(nil), ci.SampleDimensions...),
		Pyramids:         make([]pyramidInfo, len(ci.Pyramids)),
	}
	for i, p := range ci.Pyramids {
		r.Pyramids[i] = pyramidInfo{ID: p.ID, CRS: p.CRS, Mosaics: append([]mosaicInfo(nil), p.Mosaics...)}
	}
	return r
}
