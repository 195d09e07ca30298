// Package store provides SQLite-backed persistence for the fact store.
package store

import (
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

// factColumns lists the facts table columns in scan order.
const factColumns = `id, mem_type, subjects, predicate, object, fact_text, visibility,
	confidence, chapter_start, chapter_end, is_active, version, supersedes, superseded_by,
	prov_chapter, prov_source, prov_timestamp, update_reason, update_confidence, attrs`

type scanner interface {
	Scan(dest ...any) error
}

// scanFact reads one row selected with factColumns.
func scanFact(row scanner) (*fact.Fact, error) {
	var f fact.Fact
	var memType, visibility, subjectsJSON string
	var isActive int
	var chapterEnd sql.NullInt64
	var supersedes, supersededBy, provTimestamp, updateReason sql.NullString
	var updateConfidence sql.NullFloat64
	var attrsJSON sql.NullString

	if err := row.Scan(
		&f.ID, &memType, &subjectsJSON, &f.Predicate, &f.Object, &f.FactText, &visibility,
		&f.Confidence, &f.ChapterStart, &chapterEnd, &isActive, &f.Version, &supersedes, &supersededBy,
		&f.Provenance.Chapter, &f.Provenance.Source, &provTimestamp, &updateReason, &updateConfidence, &attrsJSON,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(subjectsJSON), &f.Subjects); err != nil {
		return nil, errors.Wrapf(err, "fact %s: decode subjects", f.ID)
	}
	f.MemType, _ = fact.ParseMemType(memType)
	f.Visibility = fact.Visibility(visibility)
	f.IsActive = isActive != 0

	if chapterEnd.Valid {
		f.ChapterEnd = fact.IntPtr(int(chapterEnd.Int64))
	}
	if supersedes.Valid {
		f.Supersedes = fact.StringPtr(supersedes.String)
	}
	if supersededBy.Valid {
		f.SupersededBy = fact.StringPtr(supersededBy.String)
	}
	if provTimestamp.Valid {
		f.Provenance.Timestamp = provTimestamp.String
	}
	if updateReason.Valid {
		f.UpdateReason = updateReason.String
	}
	if updateConfidence.Valid {
		v := updateConfidence.Float64
		f.UpdateConfidence = &v
	}
	if attrsJSON.Valid {
		if err := json.Unmarshal([]byte(attrsJSON.String), &f.Attrs); err != nil {
			return nil, errors.Wrapf(err, "fact %s: decode attrs", f.ID)
		}
	}
	return &f, nil
}

func scanFacts(rows *sql.Rows) ([]*fact.Fact, error) {
	defer rows.Close()
	var out []*fact.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullJSON encodes m as JSON, NULL when empty.
func nullJSON(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
