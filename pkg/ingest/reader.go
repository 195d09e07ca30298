package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

// LoadCandidates reads a candidate file and groups it into batches.
func LoadCandidates(path string) ([]Batch, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fh.Close()
	return ReadCandidates(fh, path)
}

// ReadCandidates decodes candidates written either as JSONL or as a single
// JSON array. Each candidate's chapter_start, or failing that its
// provenance chapter, names the chapter it was observed in. Batches come
// back in ascending chapter order with file order kept inside a chapter.
func ReadCandidates(r io.Reader, name string) ([]Batch, error) {
	br := bufio.NewReader(r)
	candidates, err := decode(br, name)
	if err != nil {
		return nil, err
	}

	byChapter := make(map[int][]*fact.Fact)
	for i, c := range candidates {
		chapter := c.ChapterStart
		if chapter == 0 {
			chapter = c.Provenance.Chapter
		}
		if chapter < 1 {
			return nil, &fact.MalformedRecordError{
				ID:     c.ID,
				Field:  "chapter_start",
				Reason: "candidate " + strconv.Itoa(i+1) + " in " + name + " has no observation chapter",
			}
		}
		byChapter[chapter] = append(byChapter[chapter], c)
	}

	chapters := make([]int, 0, len(byChapter))
	for c := range byChapter {
		chapters = append(chapters, c)
	}
	sort.Ints(chapters)

	batches := make([]Batch, 0, len(chapters))
	for _, c := range chapters {
		batches = append(batches, Batch{Chapter: c, Candidates: byChapter[c]})
	}
	return batches, nil
}

func decode(br *bufio.Reader, name string) ([]*fact.Fact, error) {
	head, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	if head != '[' {
		return factstore.DecodeJSONL(br, name)
	}

	var out []*fact.Fact
	if err := json.NewDecoder(br).Decode(&out); err != nil {
		return nil, &fact.MalformedRecordError{Field: name, Reason: err.Error()}
	}
	return out, nil
}

// peekNonSpace discards leading whitespace and returns the next byte
// without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.Discard(1); err != nil {
			return 0, err
		}
	}
}
