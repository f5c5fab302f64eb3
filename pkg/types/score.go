// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// Well-known score table names produced from a result archive.
const (
	TablePertSummary  = "pert_summary"
	TableConnectivity = "connectivity"
)

// ScoreRow holds the numeric scores and string metadata of one
// compound or perturbation.
type ScoreRow struct {
	// ID is the row identifier (compound or signature ID).
	ID string `json:"id" yaml:"id"`

	// Scores maps score column names (e.g. "TAG") to values.
	Scores map[string]float64 `json:"scores" yaml:"scores"`

	// Meta maps row metadata fields (e.g. "pert_iname") to values.
	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Score returns the named score and whether it is present.
func (r ScoreRow) Score(name string) (float64, bool) {
	v, ok := r.Scores[name]
	return v, ok
}

// ScoreTable maps identifiers to score rows. Storage order is irrelevant;
// callers rank explicitly.
type ScoreTable struct {
	// Name is the logical table name, e.g. "pert_summary".
	Name string `json:"name" yaml:"name"`

	// Source is the file the table was parsed from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Columns lists the score column names in file order.
	Columns []string `json:"columns" yaml:"columns"`

	// Rows maps row ID to row.
	Rows map[string]ScoreRow `json:"rows" yaml:"rows"`

	// Excluded counts rows dropped because a score cell was missing or
	// non-numeric.
	Excluded int `json:"excluded" yaml:"excluded"`
}

// NewScoreTable returns an empty table with the given name.
func NewScoreTable(name string) *ScoreTable {
	return &ScoreTable{Name: name, Rows: make(map[string]ScoreRow)}
}

// Len returns the number of rows.
func (t *ScoreTable) Len() int {
	return len(t.Rows)
}

// Get returns the row for id.
func (t *ScoreTable) Get(id string) (ScoreRow, bool) {
	r, ok := t.Rows[id]
	return r, ok
}

// IDs returns the row identifiers sorted lexicographically.
func (t *ScoreTable) IDs() []string {
	ids := make([]string, 0, len(t.Rows))
	for id := range t.Rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindByMeta returns the rows whose metadata field equals value, sorted by ID.
func (t *ScoreTable) FindByMeta(field, value string) []ScoreRow {
	var out []ScoreRow
	for _, id := range t.IDs() {
		r := t.Rows[id]
		if r.Meta[field] == value {
			out = append(out, r)
		}
	}
	return out
}
