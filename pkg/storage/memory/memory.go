// Package memory implements transport.ResponseStore on a plain map, for
// tests and single-process deployments. Contents are lost on restart.
// A bounded store evicts the least recently saved response first.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ablauf-dev/ablauf/pkg/api"
	"github.com/ablauf-dev/ablauf/pkg/storage"
	"github.com/ablauf-dev/ablauf/pkg/transport"
)

// record pairs a response with its soft-delete marker.
type record struct {
	resp      *api.Response
	deletedAt *time.Time
}

// Store keeps responses in memory. maxSize of 0 disables eviction.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*record
	order   *list.List // front is newest, back is next to evict
	maxSize int
}

var _ transport.ResponseStore = (*Store)(nil)

// New creates a store that evicts the oldest response once maxSize
// entries exist. Pass 0 for an unbounded store.
func New(maxSize int) *Store {
	return &Store{
		byID:    make(map[string]*record),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// SaveResponse stores resp, rejecting duplicate IDs with ErrConflict.
func (s *Store) SaveResponse(ctx context.Context, resp *api.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[resp.ID]; dup {
		return storage.ErrConflict
	}
	if s.maxSize > 0 && len(s.byID) >= s.maxSize {
		if oldest := s.order.Back(); oldest != nil {
			delete(s.byID, oldest.Value.(string))
			s.order.Remove(oldest)
		}
	}
	s.order.PushFront(resp.ID)
	s.byID[resp.ID] = &record{resp: resp}
	return nil
}

// GetResponse looks up a response by ID. Soft-deleted responses report
// ErrNotFound like missing ones.
func (s *Store) GetResponse(ctx context.Context, id string) (*api.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec := s.byID[id]; rec != nil && rec.deletedAt == nil {
		return rec.resp, nil
	}
	return nil, storage.ErrNotFound
}

// DeleteResponse marks a response deleted. Deleting twice fails with
// ErrNotFound.
func (s *Store) DeleteResponse(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.byID[id]
	if rec == nil || rec.deletedAt != nil {
		return storage.ErrNotFound
	}
	now := time.Now()
	rec.deletedAt = &now
	return nil
}

// HealthCheck never fails; there is no backing service to probe.
func (s *Store) HealthCheck(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ListResponses pages through live responses sorted by creation time,
// newest first unless opts.Order is "asc". Ties break on ID so cursor
// pagination stays deterministic.
func (s *Store) ListResponses(ctx context.Context, opts transport.ListOptions) (*transport.ResponseList, error) {
	s.mu.RLock()
	matches := make([]*api.Response, 0, len(s.byID))
	for _, rec := range s.byID {
		if rec.deletedAt != nil {
			continue
		}
		if opts.Model != "" && rec.resp.Model != opts.Model {
			continue
		}
		matches = append(matches, rec.resp)
	}
	s.mu.RUnlock()

	ascending := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !ascending {
			a, b = b, a
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})

	matches = applyCursors(matches, opts.After, opts.Before)

	limit := clampLimit(opts.Limit)
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	list := &transport.ResponseList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		list.FirstID = matches[0].ID
		list.LastID = matches[len(matches)-1].ID
	} else {
		list.Data = []*api.Response{}
	}
	return list, nil
}

// applyCursors slices the sorted result set to the page after or before
// the named response. An unknown cursor yields an empty page.
func applyCursors(matches []*api.Response, after, before string) []*api.Response {
	find := func(id string) int {
		for i, r := range matches {
			if r.ID == id {
				return i
			}
		}
		return -1
	}

	switch {
	case after != "":
		if i := find(after); i >= 0 {
			return matches[i+1:]
		}
		return nil
	case before != "":
		if i := find(before); i > 0 {
			return matches[:i]
		}
		return nil
	}
	return matches
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	}
	return limit
}
