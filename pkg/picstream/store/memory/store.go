// Package memory provides in-memory implementations of the picstream record
// and user stores. Intended for tests and development; the postgres package
// is the durable counterpart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kavichu/picstream/pkg/picstream"
)

// Store implements picstream.RecordStore using in-memory storage. One Store
// corresponds to one table: records keyed by id, with an owner-partitioned
// secondary index sorted by id and a status-filtered scan path. Both the
// primary entry and the index entry are updated under one lock, so readers
// never observe them out of step.
type Store struct {
	mu      sync.RWMutex
	records map[string]*picstream.Record
	ids     []string            // all ids, ascending
	byOwner map[string][]string // owner -> ids, ascending
}

// NewStore creates a new in-memory record store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*picstream.Record),
		byOwner: make(map[string][]string),
	}
}

func (s *Store) Put(ctx context.Context, record *picstream.Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: record id is required", picstream.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(record)
	return nil
}

func (s *Store) PutIf(ctx context.Context, record *picstream.Record, expect picstream.ImageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.ID]
	if !ok {
		return picstream.ErrNotFound
	}
	if existing.Status != expect {
		return fmt.Errorf("%w: have %s, expected %s", picstream.ErrConflict, existing.Status, expect)
	}

	s.putLocked(record)
	return nil
}

func (s *Store) putLocked(record *picstream.Record) {
	existing, ok := s.records[record.ID]
	if !ok {
		s.ids = insertSorted(s.ids, record.ID)
		s.byOwner[record.Owner] = insertSorted(s.byOwner[record.Owner], record.ID)
	} else if existing.Owner != record.Owner {
		s.byOwner[existing.Owner] = removeSorted(s.byOwner[existing.Owner], record.ID)
		s.byOwner[record.Owner] = insertSorted(s.byOwner[record.Owner], record.ID)
	}

	// Store a copy to avoid external modifications
	s.records[record.ID] = record.Clone()
}

func (s *Store) Get(ctx context.Context, id string) (*picstream.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, picstream.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *Store) Query(ctx context.Context, req picstream.QueryRequest) (*picstream.Page, error) {
	if req.Limit <= 0 {
		return nil, fmt.Errorf("%w: query limit must be positive", picstream.ErrInvalidInput)
	}

	resumeAfter, err := picstream.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []string
	switch req.Index {
	case picstream.IndexByOwner:
		candidates = s.byOwner[req.Partition]
	case picstream.IndexByStatus:
		candidates = s.ids
	default:
		return nil, fmt.Errorf("%w: unknown index %q", picstream.ErrInvalidInput, req.Index)
	}

	page := &picstream.Page{Items: []*picstream.Record{}}
	walk(candidates, req.Ascending, func(id string) bool {
		if resumeAfter != "" && !isPast(id, resumeAfter, req.Ascending) {
			return true
		}
		record := s.records[id]
		if req.Index == picstream.IndexByStatus && string(record.Status) != req.Partition {
			return true
		}
		if len(page.Items) == req.Limit {
			// One more match exists beyond the page boundary.
			page.Cursor = picstream.EncodeCursor(page.Items[len(page.Items)-1].ID)
			return false
		}
		page.Items = append(page.Items, record.Clone())
		return true
	})

	return page, nil
}

// walk visits ids in sort-key order, forward or reverse, until fn returns
// false.
func walk(ids []string, ascending bool, fn func(id string) bool) {
	if ascending {
		for _, id := range ids {
			if !fn(id) {
				return
			}
		}
		return
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if !fn(ids[i]) {
			return
		}
	}
}

// isPast reports whether id lies strictly beyond the resume key in the
// direction of travel.
func isPast(id, resumeAfter string, ascending bool) bool {
	if ascending {
		return id > resumeAfter
	}
	return id < resumeAfter
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}
