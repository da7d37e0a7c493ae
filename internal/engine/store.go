package engine

import (
	"sync"

	"vend_go/internal/domain"
)

// ListingStore owns the assetId -> (handler, key) mapping and the
// enumerable set of listed identifiers.
//
// Enumeration is snapshot-consistent per call, but removal swaps the
// last identifier into the vacated slot, so indices are NOT stable
// across mutating calls. Callers must not cache them.
type ListingStore struct {
	mu       sync.RWMutex
	listings map[domain.AssetID]domain.Listing
	index    []domain.AssetID
	pos      map[domain.AssetID]int
}

// NewListingStore creates an empty store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		listings: make(map[domain.AssetID]domain.Listing),
		pos:      make(map[domain.AssetID]int),
	}
}

// Insert adds a listing. Overwriting is disallowed: an already-present
// identifier fails with ErrAlreadyListed.
func (s *ListingStore) Insert(id domain.AssetID, l domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listings[id]; ok {
		return domain.ErrAlreadyListed
	}
	s.listings[id] = l
	s.pos[id] = len(s.index)
	s.index = append(s.index, id)
	return nil
}

// Delete removes a listing and returns it, so the purchase path can
// keep the resolved route (and re-insert it on rollback).
func (s *ListingStore) Delete(id domain.AssetID) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrUnknownAsset
	}
	delete(s.listings, id)

	// Swap-remove from the enumeration index.
	i := s.pos[id]
	last := len(s.index) - 1
	moved := s.index[last]
	s.index[i] = moved
	s.pos[moved] = i
	s.index = s.index[:last]
	delete(s.pos, id)

	return l, nil
}

// Resolve returns the listing for an identifier.
func (s *ListingStore) Resolve(id domain.AssetID) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrUnknownAsset
	}
	return l, nil
}

// Exists reports whether an identifier is currently listed.
func (s *ListingStore) Exists(id domain.AssetID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.listings[id]
	return ok
}

// Count returns the number of currently listed identifiers.
func (s *ListingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// At returns the identifier at an enumeration index.
func (s *ListingStore) At(i int) (domain.AssetID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.index) {
		return domain.AssetID{}, false
	}
	return s.index[i], true
}

// Snapshot returns all listed identifiers with their handler names
// (for state dump).
func (s *ListingStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(s.listings))
	for id, l := range s.listings {
		result[id.String()] = l.Handler.Name()
	}
	return result
}
