// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package recommend ranks scored compounds, enriches the top of the
// ranking with ChEMBL metadata, and writes the recommendation report.
package recommend

import (
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// Candidate is one ranked row of a score table.
type Candidate struct {
	ID        string
	Name      string
	Score     float64
	Secondary *float64
}

// Rank orders the rows of tbl by cfg.ScoreColumn, breaking ties by
// cfg.SecondaryColumn in the same direction and then by identifier
// ascending. Rows without the primary score or outside cfg.IDPrefix are
// skipped. At most cfg.TopK candidates are returned; TopK <= 0 keeps all.
func Rank(tbl *types.ScoreTable, cfg types.RecommendConfig) []Candidate {
	if tbl == nil {
		return nil
	}
	column := cfg.ScoreColumn
	if column == "" {
		column = "TAG"
	}

	var out []Candidate
	for id, row := range tbl.Rows {
		if cfg.IDPrefix != "" && !strings.HasPrefix(id, cfg.IDPrefix) {
			continue
		}
		score, ok := row.Score(column)
		if !ok {
			continue
		}
		c := Candidate{ID: id, Name: row.Meta["pert_iname"], Score: score}
		if cfg.SecondaryColumn != "" {
			if v, ok := row.Score(cfg.SecondaryColumn); ok {
				c.Secondary = &v
			}
		}
		out = append(out, c)
	}

	asc := cfg.Order == types.RankAscending
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return (a.Score < b.Score) == asc
		}
		if sa, sb := secondary(a, asc), secondary(b, asc); sa != sb {
			return (sa < sb) == asc
		}
		return a.ID < b.ID
	})

	if cfg.TopK > 0 && len(out) > cfg.TopK {
		out = out[:cfg.TopK]
	}
	return out
}

// secondary returns the tie-break score. A missing value sorts after every
// present one.
func secondary(c Candidate, asc bool) float64 {
	if c.Secondary != nil {
		return *c.Secondary
	}
	if asc {
		return math.MaxFloat64
	}
	return -math.MaxFloat64
}
