// Package factstore holds every fact record and answers identity and
// chapter-scoped queries over them.
//
// Records are kept in an append-only arena and are never modified after
// insert. Supersession is recorded only on the successor (its Supersedes
// field); a predecessor's closed window, inactive flag and superseded_by
// link are derived from the successor index whenever a record is read.
package factstore

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// ErrNotFound is returned when an id is not in the store.
var ErrNotFound = errors.New("fact not found")

// Store is a single-writer, in-memory fact store.
type Store struct {
	// arena in insertion order; entries are never modified
	records []*fact.Fact

	byID      map[string]int
	byChapter map[int][]int
	byKey     map[fact.Key][]int

	// predecessor id -> arena index of the record that supersedes it
	successor map[string]int

	// canonical key -> arena index of the live head record
	heads map[fact.Key]int

	// sorted distinct chapter_start values
	chapters []int

	reserved map[string]bool
	log      *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithReservedSubjects names pseudo-entities (world, user) that are excluded
// from the character list in summaries.
func WithReservedSubjects(ids ...string) Option {
	return func(s *Store) {
		s.reserved = make(map[string]bool, len(ids))
		for _, id := range ids {
			s.reserved[id] = true
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:      make(map[string]int),
		byChapter: make(map[int][]int),
		byKey:     make(map[fact.Key][]int),
		successor: make(map[string]int),
		heads:     make(map[fact.Key]int),
		reserved:  map[string]bool{"world": true, "user_123": true},
		log:       logger.Named("factstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert appends a record. The store keeps its own copy; later changes to
// r by the caller have no effect.
//
// Insert fails with *fact.MalformedRecordError if r is structurally invalid,
// *fact.DuplicateIDError if the id is taken and *fact.BranchedHistoryError if
// another record already supersedes the same predecessor. A supersedes link
// to an id not yet present is accepted so that files can be loaded in any
// line order; EvolutionChain and CheckIntegrity report it if it stays absent.
func (s *Store) Insert(r *fact.Fact) error {
	if r == nil {
		return &fact.MalformedRecordError{Field: "record", Reason: "nil"}
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if _, exists := s.byID[r.ID]; exists {
		return &fact.DuplicateIDError{ID: r.ID}
	}
	if r.Supersedes != nil {
		if idx, taken := s.successor[*r.Supersedes]; taken {
			return &fact.BranchedHistoryError{
				ID:         *r.Supersedes,
				Successors: []string{s.records[idx].ID, r.ID},
			}
		}
	}

	rec := r.Clone()
	idx := len(s.records)
	s.records = append(s.records, rec)
	s.byID[rec.ID] = idx

	if _, seen := s.byChapter[rec.ChapterStart]; !seen {
		pos := sort.SearchInts(s.chapters, rec.ChapterStart)
		s.chapters = append(s.chapters, 0)
		copy(s.chapters[pos+1:], s.chapters[pos:])
		s.chapters[pos] = rec.ChapterStart
	}
	s.byChapter[rec.ChapterStart] = append(s.byChapter[rec.ChapterStart], idx)

	key := rec.Key()
	s.byKey[key] = append(s.byKey[key], idx)
	if rec.Supersedes != nil {
		s.successor[*rec.Supersedes] = idx
		if prev, ok := s.byID[*rec.Supersedes]; ok {
			if prevKey := s.records[prev].Key(); prevKey != key {
				s.refreshHead(prevKey)
			}
		}
	}
	s.refreshHead(key)

	s.log.Debugw("inserted fact",
		logger.FieldFactID, rec.ID,
		logger.FieldCanonicalKey, key,
		logger.FieldChapter, rec.ChapterStart,
	)
	return nil
}

// refreshHead picks the latest-starting active record for key, preferring
// the most recently inserted on equal starts.
func (s *Store) refreshHead(key fact.Key) {
	head := -1
	for _, idx := range s.byKey[key] {
		if !s.active(idx) {
			continue
		}
		if head == -1 || s.records[idx].ChapterStart >= s.records[head].ChapterStart {
			head = idx
		}
	}
	if head == -1 {
		delete(s.heads, key)
		return
	}
	s.heads[key] = head
}

// active reports the derived is_active value of the record at idx.
func (s *Store) active(idx int) bool {
	rec := s.records[idx]
	if _, superseded := s.successor[rec.ID]; superseded {
		return false
	}
	return rec.IsActive
}

// materialize returns a copy of the record at idx carrying the derived
// supersession fields.
func (s *Store) materialize(idx int) *fact.Fact {
	out := s.records[idx].Clone()
	if succ, ok := s.successor[out.ID]; ok {
		next := s.records[succ]
		out.IsActive = false
		out.ChapterEnd = fact.IntPtr(next.ChapterStart - 1)
		out.SupersededBy = fact.StringPtr(next.ID)
	}
	return out
}

func (s *Store) materializeAll(idxs []int) []*fact.Fact {
	out := make([]*fact.Fact, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.materialize(idx))
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

// Get returns a record by id.
func (s *Store) Get(id string) (*fact.Fact, error) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return s.materialize(idx), nil
}

// All returns every record in insertion order.
func (s *Store) All() []*fact.Fact {
	out := make([]*fact.Fact, len(s.records))
	for i := range s.records {
		out[i] = s.materialize(i)
	}
	return out
}

// QueryAtChapter returns every record visible at chapter c: active, started
// at or before c, and not closed before c. Results are ordered by
// chapter_start, then insertion order.
func (s *Store) QueryAtChapter(c int) []*fact.Fact {
	var out []*fact.Fact
	for _, ch := range s.chapters {
		if ch > c {
			break
		}
		for _, idx := range s.byChapter[ch] {
			rec := s.materialize(idx)
			if rec.VisibleAt(c) {
				out = append(out, rec)
			}
		}
	}
	return out
}

// FindByCanonicalKey returns all records sharing key, active or not, in
// insertion order.
func (s *Store) FindByCanonicalKey(key fact.Key) []*fact.Fact {
	return s.materializeAll(s.byKey[key])
}

// Timeline returns all versions for key ordered by chapter_start, then
// version.
func (s *Store) Timeline(key fact.Key) []*fact.Fact {
	out := s.FindByCanonicalKey(key)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChapterStart != out[j].ChapterStart {
			return out[i].ChapterStart < out[j].ChapterStart
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Current returns the live head record for key.
func (s *Store) Current(key fact.Key) (*fact.Fact, bool) {
	idx, ok := s.heads[key]
	if !ok {
		return nil, false
	}
	return s.materialize(idx), true
}

// Keys returns every canonical key in the store, sorted.
func (s *Store) Keys() []fact.Key {
	keys := make([]fact.Key, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// EvolutionChain walks supersedes links back from id and returns the chain
// oldest first, ending with id itself.
func (s *Store) EvolutionChain(id string) ([]*fact.Fact, error) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}

	visited := map[string]bool{id: true}
	path := []string{id}
	chain := []*fact.Fact{s.materialize(idx)}

	cur := s.records[idx]
	for cur.Supersedes != nil {
		prev := *cur.Supersedes
		if visited[prev] {
			return nil, &fact.ChainCycleError{ID: prev, Path: append(path, prev)}
		}
		prevIdx, ok := s.byID[prev]
		if !ok {
			return nil, &fact.DanglingReferenceError{FromID: cur.ID, MissingID: prev, Field: "supersedes"}
		}
		visited[prev] = true
		path = append(path, prev)
		chain = append(chain, s.materialize(prevIdx))
		cur = s.records[prevIdx]
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// CheckIntegrity verifies every version link: supersedes and stored
// superseded_by pointers must resolve and no chain may revisit an id. A
// stored superseded_by must name the record whose supersedes points back,
// and a stored chapter_end on a superseded record must be the chapter before
// its successor starts.
func (s *Store) CheckIntegrity() error {
	for _, rec := range s.records {
		if rec.SupersededBy != nil {
			idx, ok := s.byID[*rec.SupersededBy]
			if !ok {
				return &fact.DanglingReferenceError{FromID: rec.ID, MissingID: *rec.SupersededBy, Field: "superseded_by"}
			}
			next := s.records[idx]
			if next.Supersedes == nil || *next.Supersedes != rec.ID {
				return &fact.InconsistentLinkError{
					ID:     rec.ID,
					Field:  "superseded_by",
					Reason: next.ID + " does not supersede it",
				}
			}
		}
		if succ, ok := s.successor[rec.ID]; ok && rec.ChapterEnd != nil {
			if want := s.records[succ].ChapterStart - 1; *rec.ChapterEnd != want {
				return &fact.InconsistentLinkError{
					ID:     rec.ID,
					Field:  "chapter_end",
					Reason: fmt.Sprintf("is %d, successor %s starts at chapter %d", *rec.ChapterEnd, s.records[succ].ID, want+1),
				}
			}
		}
		if _, err := s.EvolutionChain(rec.ID); err != nil {
			return err
		}
	}
	return nil
}
