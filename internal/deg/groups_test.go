// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupFile(t *testing.T) {
	input := `# dataset labels
>>file1.tsv
WT, wt ,mut,MUT

>>file2.csv
treated
`
	groups, err := ParseGroupFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "file1.tsv", groups[0].File)
	assert.Equal(t, []string{"wt", "wt", "mut", "mut"}, groups[0].Labels)
	assert.Equal(t, "file2.csv", groups[1].File)
	assert.Equal(t, []string{"treated"}, groups[1].Labels)
}

func TestParseGroupFile_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only comments", "# nothing\n# here\n"},
		{"labels before file", "wt,mut\n>>a.tsv\nwt\n"},
		{"file without labels", ">>a.tsv\n>>b.tsv\nwt\n"},
		{"trailing file without labels", ">>a.tsv\nwt\n>>b.tsv\n"},
		{"empty file name", ">>\nwt\n"},
		{"duplicate file", ">>a.tsv\nwt\n>>a.tsv\nmut\n"},
		{"second label line", ">>a.tsv\nwt\nmut\n"},
		{"empty label", ">>a.tsv\nwt,,mut\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGroupFile(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedGroupFile)
		})
	}
}

func TestLoadGroupFile_Missing(t *testing.T) {
	_, err := LoadGroupFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrMalformedGroupFile)
}

func TestLoadGroupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultGroupFile)
	require.NoError(t, os.WriteFile(path, []byte(">>x.tsv\ncontrol\n"), 0o644))

	groups, err := LoadGroupFile(path)
	require.NoError(t, err)
	assert.Equal(t, []FileGroups{{File: "x.tsv", Labels: []string{"control"}}}, groups)
}

func TestLabelsFor(t *testing.T) {
	single := FileGroups{File: "a.tsv", Labels: []string{"control"}}
	got, err := single.LabelsFor(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"control", "control", "control"}, got)

	exact := FileGroups{File: "a.tsv", Labels: []string{"wt", "mut"}}
	got, err = exact.LabelsFor(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"wt", "mut"}, got)

	_, err = exact.LabelsFor(3)
	assert.ErrorIs(t, err, ErrMalformedGroupFile)
}
