// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGCT_12(t *testing.T) {
	in := "#1.2\n" +
		"2\t2\n" +
		"Name\tDescription\tTAG\tNCS\n" +
		"BRD-K1\taspirin\t1.5\t-0.5\n" +
		"BRD-K2\tmetformin\t2.5\t0.25\n"

	tbl, err := ParseGCT(strings.NewReader(in), "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"TAG", "NCS"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())

	row, ok := tbl.Get("BRD-K1")
	require.True(t, ok)
	assert.Equal(t, map[string]float64{"TAG": 1.5, "NCS": -0.5}, row.Scores)
	assert.Equal(t, "aspirin", row.Meta["Description"])
}

func TestParseGCT_13(t *testing.T) {
	tbl, err := ParseGCT(strings.NewReader(connectivityGCT), "conn")
	require.NoError(t, err)
	assert.Equal(t, "conn", tbl.Name)
	assert.Equal(t, []string{"sig1", "sig2", "sig3"}, tbl.IDs())

	rows := tbl.FindByMeta("pert_id", "BRD-K0002")
	require.Len(t, rows, 1)
	assert.Equal(t, "metformin", rows[0].Meta["pert_iname"])
	assert.Equal(t, -1.2, rows[0].Scores["TAG"])
}

func TestParseGCT_ExcludesBadCells(t *testing.T) {
	in := "#1.2\n" +
		"4\t1\n" +
		"Name\tDescription\tTAG\n" +
		"a\t\t1\n" +
		"b\t\t\n" +
		"c\t\tNaN\n" +
		"d\t\tnope\n"

	tbl, err := ParseGCT(strings.NewReader(in), "t")
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 3, tbl.Excluded)
}

func TestParseGCT_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad version", "#2.0\n1\t1\n"},
		{"missing dimensions", "#1.2\n"},
		{"bad dimensions", "#1.2\nx\ty\n"},
		{"short 1.3 dimensions", "#1.3\n1\t1\n"},
		{"header width", "#1.2\n1\t2\nName\tDescription\tA\n"},
		{"row width", "#1.2\n1\t1\nName\tDescription\tA\nr1\t\t1\t2\n"},
		{"duplicate id", "#1.2\n2\t1\nName\tDescription\tA\nr1\t\t1\nr1\t\t2\n"},
		{"row count", "#1.2\n3\t1\nName\tDescription\tA\nr1\t\t1\n"},
		{"missing column metadata", "#1.3\n1\t1\t0\t2\nid\tA\ncid\tA\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGCT(strings.NewReader(tt.input), "t")
			assert.ErrorIs(t, err, ErrMalformedTable)
		})
	}
}
