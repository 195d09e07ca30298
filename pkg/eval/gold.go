// Package eval measures a fact store against hand-labelled gold data:
// coverage of key facts at a chapter, and precision, recall and MRR of
// ranked retrieval.
package eval

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// GoldFact is a fact the store is expected to hold.
type GoldFact struct {
	ID        string   `json:"id"`
	Fact      string   `json:"fact"`
	Subjects  []string `json:"subjects"`
	Predicate string   `json:"predicate"`
	Object    string   `json:"object"`
}

// Key is the canonical key of the gold fact.
func (g GoldFact) Key() fact.Key {
	return fact.KeyOf(g.Subjects, g.Predicate, g.Object)
}

// KeyFacts groups the gold facts expected by one chapter.
type KeyFacts struct {
	Chapter int        `json:"chapter"`
	Facts   []GoldFact `json:"facts"`
}

// GoldMemory labels a canonical fact slot with a gold id.
type GoldMemory struct {
	ID        string   `json:"id"`
	Subjects  []string `json:"subjects"`
	Predicate string   `json:"predicate"`
	Object    string   `json:"object"`
}

// Key is the canonical key of the gold memory.
func (g GoldMemory) Key() fact.Key {
	return fact.KeyOf(g.Subjects, g.Predicate, g.Object)
}

// Query is one retrieval question: the text, the chapter to ask at, how many
// results to take and the gold ids that count as correct.
type Query struct {
	QID     string   `json:"qid"`
	Query   string   `json:"query"`
	Chapter int      `json:"chapter"`
	K       int      `json:"k"`
	GoldIDs []string `json:"gold_ids"`
}

// LoadKeyFacts reads a JSONL file of KeyFacts.
func LoadKeyFacts(path string) ([]KeyFacts, error) {
	return loadJSONL[KeyFacts](path)
}

// LoadGoldMemories reads a JSONL file of GoldMemory.
func LoadGoldMemories(path string) ([]GoldMemory, error) {
	return loadJSONL[GoldMemory](path)
}

// LoadQueries reads a JSONL file of Query.
func LoadQueries(path string) ([]Query, error) {
	return loadJSONL[Query](path)
}

func loadJSONL[T any](path string) ([]T, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fh.Close()
	return decodeJSONL[T](fh, path)
}

// decodeJSONL parses one value per non-blank line. name labels errors.
func decodeJSONL[T any](r io.Reader, name string) ([]T, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []T
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &fact.MalformedRecordError{
				Field:  name + ":" + strconv.Itoa(line),
				Reason: err.Error(),
			}
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return out, nil
}
