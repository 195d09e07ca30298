package fact

import (
	"fmt"
	"strings"
)

// MalformedRecordError reports a required field that is missing or invalid.
type MalformedRecordError struct {
	ID     string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed record: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed record %s: %s: %s", e.ID, e.Field, e.Reason)
}

// DuplicateIDError is returned when an id is inserted twice.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate fact id %s", e.ID)
}

// DanglingReferenceError reports a chain pointer to an absent record.
type DanglingReferenceError struct {
	FromID    string
	MissingID string
	Field     string // "supersedes" or "superseded_by"
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("fact %s: %s references missing fact %s", e.FromID, e.Field, e.MissingID)
}

// ChainCycleError reports a version chain that revisits an id.
type ChainCycleError struct {
	ID   string
	Path []string
}

func (e *ChainCycleError) Error() string {
	return fmt.Sprintf("version chain cycle at %s: %s", e.ID, strings.Join(e.Path, " <- "))
}

// BranchedHistoryError reports an id that two records both claim to supersede.
type BranchedHistoryError struct {
	ID         string
	Successors []string
}

func (e *BranchedHistoryError) Error() string {
	return fmt.Sprintf("fact %s superseded more than once: %s", e.ID, strings.Join(e.Successors, ", "))
}

// AmbiguousUpdateError is returned when update candidates tie at the top
// score and the configured tie-break refuses to choose.
type AmbiguousUpdateError struct {
	Key     Key
	TiedIDs []string
	Score   float64
}

func (e *AmbiguousUpdateError) Error() string {
	return fmt.Sprintf("ambiguous update for %s: %d candidates tie at %.3f (%s)",
		e.Key, len(e.TiedIDs), e.Score, strings.Join(e.TiedIDs, ", "))
}

// ValidationError reports a vocabulary or entity-registry mismatch. It is
// raised at the ingestion boundary and never by the store itself.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s=%q: %s", e.Field, e.Value, e.Reason)
}

// InconsistentLinkError reports a stored chain field that disagrees with the
// record it points at.
type InconsistentLinkError struct {
	ID     string
	Field  string
	Reason string
}

func (e *InconsistentLinkError) Error() string {
	return fmt.Sprintf("fact %s: inconsistent %s: %s", e.ID, e.Field, e.Reason)
}
