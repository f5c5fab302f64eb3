// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

func scoreTable(rows ...types.ScoreRow) *types.ScoreTable {
	t := types.NewScoreTable(types.TablePertSummary)
	for _, r := range rows {
		t.Rows[r.ID] = r
	}
	return t
}

func row(id string, scores map[string]float64) types.ScoreRow {
	return types.ScoreRow{ID: id, Scores: scores}
}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestRank_TiesByIdentifier(t *testing.T) {
	tbl := scoreTable(
		row("C", map[string]float64{"TAG": 0.5}),
		row("B", map[string]float64{"TAG": 0.9}),
		row("A", map[string]float64{"TAG": 0.9}),
	)
	cfg := types.RecommendConfig{ScoreColumn: "TAG", Order: types.RankDescending}
	assert.Equal(t, []string{"A", "B", "C"}, ids(Rank(tbl, cfg)))
}

func TestRank_SecondaryColumn(t *testing.T) {
	tbl := scoreTable(
		row("A", map[string]float64{"TAG": 1, "NCS": 0.1}),
		row("B", map[string]float64{"TAG": 1, "NCS": 0.7}),
		row("C", map[string]float64{"TAG": 1}),
		row("D", map[string]float64{"TAG": 2, "NCS": -5}),
	)
	cfg := types.RecommendConfig{ScoreColumn: "TAG", SecondaryColumn: "NCS", Order: types.RankDescending}
	got := Rank(tbl, cfg)
	assert.Equal(t, []string{"D", "B", "A", "C"}, ids(got))
	assert.Nil(t, got[3].Secondary)
	assert.Equal(t, 0.7, *got[1].Secondary)

	cfg.Order = types.RankAscending
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(Rank(tbl, cfg)))
}

func TestRank_FiltersAndTopK(t *testing.T) {
	tbl := scoreTable(
		row("BRD-K1", map[string]float64{"TAG": 3}),
		row("BRD-K2", map[string]float64{"TAG": 2}),
		row("BRD-K3", map[string]float64{"TAG": 1}),
		row("BRD-K4", map[string]float64{"NCS": 9}),
		row("CMAP-X", map[string]float64{"TAG": 99}),
	)
	cfg := types.RecommendConfig{ScoreColumn: "TAG", IDPrefix: "BRD-", TopK: 2}
	assert.Equal(t, []string{"BRD-K1", "BRD-K2"}, ids(Rank(tbl, cfg)))

	cfg.TopK = 0
	assert.Equal(t, []string{"BRD-K1", "BRD-K2", "BRD-K3"}, ids(Rank(tbl, cfg)))

	cfg.IDPrefix = ""
	assert.Equal(t, "CMAP-X", Rank(tbl, cfg)[0].ID)
}

func TestRank_Defaults(t *testing.T) {
	tbl := scoreTable(
		types.ScoreRow{ID: "BRD-K1", Scores: map[string]float64{"TAG": -1}, Meta: map[string]string{"pert_iname": "aspirin"}},
		row("BRD-K2", map[string]float64{"TAG": 4}),
	)
	got := Rank(tbl, types.DefaultPipelineConfig().Recommend)
	assert.Equal(t, []string{"BRD-K2", "BRD-K1"}, ids(got))
	assert.Equal(t, "aspirin", got[1].Name)

	assert.Nil(t, Rank(nil, types.RecommendConfig{}))
}
