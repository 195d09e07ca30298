package store

import (
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

// ErrNotFound is returned when a fact id has no row.
var ErrNotFound = errors.New("fact not found")

// SQLiteStore persists facts in SQLite. It implements factstore.Persister.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema keeps one row per fact version. Versions of the same slot share
// canonical_key; chapter_start/chapter_end bound each version's window and
// is_active marks the current one.
const schema = `
CREATE TABLE IF NOT EXISTS facts (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    canonical_key TEXT NOT NULL,
    mem_type TEXT NOT NULL,
    subjects TEXT NOT NULL,
    predicate TEXT NOT NULL,
    object TEXT NOT NULL,
    fact_text TEXT NOT NULL,
    visibility TEXT NOT NULL,
    confidence REAL NOT NULL,
    chapter_start INTEGER NOT NULL,
    chapter_end INTEGER,
    is_active INTEGER NOT NULL DEFAULT 1,
    version INTEGER NOT NULL DEFAULT 1,
    supersedes TEXT,
    superseded_by TEXT,
    prov_chapter INTEGER NOT NULL DEFAULT 0,
    prov_source TEXT NOT NULL DEFAULT '',
    prov_timestamp TEXT,
    update_reason TEXT,
    update_confidence REAL,
    attrs TEXT
);

-- Partial index for current versions
CREATE INDEX IF NOT EXISTS idx_facts_current ON facts(canonical_key) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_facts_chapter ON facts(chapter_start);
-- Index for history queries
CREATE INDEX IF NOT EXISTS idx_facts_history ON facts(canonical_key, chapter_start);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// An in-memory database lives and dies with its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// migrate adds columns introduced after a database was first created.
func migrate(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('facts') WHERE name = 'attrs'`).Scan(&n)
	if err != nil {
		return errors.Wrap(err, "inspect schema")
	}
	if n == 0 {
		if _, err := db.Exec(`ALTER TABLE facts ADD COLUMN attrs TEXT`); err != nil {
			return errors.Wrap(err, "add attrs column")
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Persister
// =============================================================================

// SaveFacts replaces the stored set with facts inside one transaction.
func (s *SQLiteStore) SaveFacts(facts []*fact.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM facts`); err != nil {
		return errors.Wrap(err, "clear facts")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO facts (id, seq, canonical_key, mem_type, subjects, predicate, object, fact_text,
			visibility, confidence, chapter_start, chapter_end, is_active, version, supersedes,
			superseded_by, prov_chapter, prov_source, prov_timestamp, update_reason, update_confidence, attrs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for seq, f := range facts {
		subjects, err := json.Marshal(f.Subjects)
		if err != nil {
			return errors.Wrapf(err, "encode subjects of %s", f.ID)
		}
		attrs, err := nullJSON(f.Attrs)
		if err != nil {
			return errors.Wrapf(err, "encode attrs of %s", f.ID)
		}
		_, err = stmt.Exec(
			f.ID, seq, string(f.Key()), string(f.MemType), string(subjects), f.Predicate, f.Object,
			f.FactText, string(f.Visibility), f.Confidence, f.ChapterStart, nullInt(f.ChapterEnd),
			boolToInt(f.IsActive), f.Version, nullString(f.Supersedes), nullString(f.SupersededBy),
			f.Provenance.Chapter, f.Provenance.Source, nullText(f.Provenance.Timestamp),
			nullText(f.UpdateReason), nullFloat(f.UpdateConfidence), attrs,
		)
		if err != nil {
			return errors.Wrapf(err, "insert fact %s", f.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// LoadFacts returns every stored fact in save order.
func (s *SQLiteStore) LoadFacts() ([]*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + factColumns + ` FROM facts ORDER BY seq`)
	if err != nil {
		return nil, errors.Wrap(err, "query facts")
	}
	return scanFacts(rows)
}

// =============================================================================
// Temporal queries
// =============================================================================

// GetFact retrieves one fact version by id.
func (s *SQLiteStore) GetFact(id string) (*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get fact %s", id)
	}
	return f, nil
}

// ListFactVersions returns every version stored under a canonical key,
// newest first.
func (s *SQLiteStore) ListFactVersions(key fact.Key) ([]*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+factColumns+`
		FROM facts WHERE canonical_key = ? ORDER BY chapter_start DESC, version DESC
	`, string(key))
	if err != nil {
		return nil, errors.Wrap(err, "query versions")
	}
	return scanFacts(rows)
}

// FactsAtChapter returns the facts visible at a chapter: active, started at
// or before it and not closed before it.
func (s *SQLiteStore) FactsAtChapter(chapter int) ([]*fact.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+factColumns+`
		FROM facts
		WHERE is_active = 1 AND chapter_start <= ? AND (chapter_end IS NULL OR chapter_end >= ?)
		ORDER BY chapter_start, seq
	`, chapter, chapter)
	if err != nil {
		return nil, errors.Wrap(err, "query chapter")
	}
	return scanFacts(rows)
}

// CountFacts returns the number of stored fact versions.
func (s *SQLiteStore) CountFacts() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM facts`).Scan(&count)
	return count, errors.Wrap(err, "count facts")
}

// Versions reports the SQLite and sqlite-vec versions of the embedded build.
func (s *SQLiteStore) Versions() (sqliteVersion, vecVersion string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT sqlite_version(), vec_version()`).Scan(&sqliteVersion, &vecVersion)
	return sqliteVersion, vecVersion, errors.Wrap(err, "query versions")
}

// =============================================================================
// Export / Import
// =============================================================================

// Export serializes every stored fact to a JSON array.
func (s *SQLiteStore) Export() ([]byte, error) {
	facts, err := s.LoadFacts()
	if err != nil {
		return nil, err
	}
	if facts == nil {
		facts = []*fact.Fact{}
	}
	return json.Marshal(facts)
}

// Import replaces the stored set with an exported JSON array.
func (s *SQLiteStore) Import(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var facts []*fact.Fact
	if err := json.Unmarshal(data, &facts); err != nil {
		return errors.Wrap(err, "import unmarshal")
	}
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return errors.Wrap(err, "import")
		}
	}
	return s.SaveFacts(facts)
}

// Compile-time interface check
var _ factstore.Persister = (*SQLiteStore)(nil)
