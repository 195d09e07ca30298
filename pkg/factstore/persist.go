package factstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/logger"
)

// Persister loads and saves the full record set. Saves always rewrite the
// whole set.
type Persister interface {
	LoadFacts() ([]*fact.Fact, error)
	SaveFacts(facts []*fact.Fact) error
}

// Open builds a store from everything the persister holds. Any malformed,
// duplicate or inconsistent record aborts the load.
func Open(p Persister, opts ...Option) (*Store, error) {
	facts, err := p.LoadFacts()
	if err != nil {
		return nil, errors.Wrap(err, "load facts")
	}
	s := New(opts...)
	for i, f := range facts {
		if err := s.Insert(f); err != nil {
			return nil, errors.Wrapf(err, "load fact #%d", i+1)
		}
	}
	if err := s.CheckIntegrity(); err != nil {
		return nil, errors.Wrap(err, "load facts")
	}
	s.log.Infow("store loaded", logger.FieldCount, s.Len())
	return s, nil
}

// Save writes every record, with derived supersession fields filled in.
func (s *Store) Save(p Persister) error {
	if err := p.SaveFacts(s.All()); err != nil {
		return errors.Wrap(err, "save facts")
	}
	s.log.Infow("store saved", logger.FieldCount, s.Len())
	return nil
}

// JSONLFile persists one JSON fact per line.
type JSONLFile struct {
	Path string
}

// NewJSONLFile returns a persister for path.
func NewJSONLFile(path string) *JSONLFile {
	return &JSONLFile{Path: path}
}

// LoadFacts reads every line of the file. A missing file is an empty store.
func (j *JSONLFile) LoadFacts() ([]*fact.Fact, error) {
	fh, err := os.Open(j.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", j.Path)
	}
	defer fh.Close()
	return DecodeJSONL(fh, j.Path)
}

// SaveFacts rewrites the file through a temporary sibling and a rename.
func (j *JSONLFile) SaveFacts(facts []*fact.Fact) error {
	if dir := filepath.Dir(j.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}

	tmp := j.Path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "create %s", tmp)
	}

	w := bufio.NewWriter(fh)
	enc := json.NewEncoder(w)
	for _, f := range facts {
		if err := enc.Encode(f); err != nil {
			fh.Close()
			os.Remove(tmp)
			return errors.Wrapf(err, "encode fact %s", f.ID)
		}
	}
	if err := w.Flush(); err != nil {
		fh.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close %s", tmp)
	}
	if err := os.Rename(tmp, j.Path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replace %s", j.Path)
	}
	return nil
}

// DecodeJSONL parses one fact per non-blank line. name labels errors.
func DecodeJSONL(r io.Reader, name string) ([]*fact.Fact, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []*fact.Fact
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var f fact.Fact
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, &fact.MalformedRecordError{
				Field:  name + ":" + strconv.Itoa(line),
				Reason: err.Error(),
			}
		}
		out = append(out, &f)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return out, nil
}
