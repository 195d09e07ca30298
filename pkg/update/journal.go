package update

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Action is the outcome of resolving one candidate.
type Action string

const (
	ActionCreate    Action = "create"
	ActionSupersede Action = "supersede"
	ActionDiscard   Action = "discard"
)

// Entry is one journaled decision.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	ExistingID string    `json:"existing_id,omitempty"`
	ResultID   string    `json:"result_id,omitempty"`
	Chapter    int       `json:"chapter"`
	Score      float64   `json:"score,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	FactText   string    `json:"fact_text"`
}

// Journal is an append-only audit log of resolver decisions.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) append(e Entry) {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
}

// Entries returns a copy of the journal.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

// Counts tallies entries per action.
func (j *Journal) Counts() map[Action]int {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[Action]int, 3)
	for _, e := range j.entries {
		out[e.Action]++
	}
	return out
}

// Clear drops every entry.
func (j *Journal) Clear() {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
}

// WriteJSONL writes one entry per line.
func (j *Journal) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range j.Entries() {
		if err := enc.Encode(e); err != nil {
			return errors.Wrap(err, "encode journal entry")
		}
	}
	return nil
}
