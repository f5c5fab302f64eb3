// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

const maxLine = 64 * 1024 * 1024

// ParseGCTFile parses the GCT file at path into a table named name.
func ParseGCTFile(path, name string) (*types.ScoreTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResultFileMissing, path)
	}
	defer f.Close()

	t, err := ParseGCT(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Source = path
	return t, nil
}

// ParseGCT parses a GCT 1.2 or 1.3 matrix. Data columns become score
// columns; row metadata (the Description column in 1.2) becomes row
// metadata. Rows with an empty, NaN or non-numeric data cell are excluded
// and counted.
func ParseGCT(r io.Reader, name string) (*types.ScoreTable, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	next := func() ([]string, bool) {
		if !sc.Scan() {
			return nil, false
		}
		line++
		return strings.Split(strings.TrimRight(sc.Text(), "\r"), "\t"), true
	}
	malformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrMalformedTable, line, fmt.Sprintf(format, args...))
	}

	version, ok := next()
	if !ok {
		return nil, scanErr(sc, malformed("empty file"))
	}
	v := strings.TrimSpace(version[0])
	if v != "#1.2" && v != "#1.3" {
		return nil, malformed("unsupported version %q", v)
	}

	dims, ok := next()
	if !ok {
		return nil, scanErr(sc, malformed("missing dimensions"))
	}
	nums, err := atois(dims)
	if err != nil {
		return nil, malformed("dimensions: %v", err)
	}
	var nRows, nCols, nRowMeta, nColMeta int
	switch {
	case v == "#1.2" && len(nums) >= 2:
		nRows, nCols, nRowMeta = nums[0], nums[1], 1
	case v == "#1.3" && len(nums) >= 4:
		nRows, nCols, nRowMeta, nColMeta = nums[0], nums[1], nums[2], nums[3]
	default:
		return nil, malformed("expected %s dimensions, got %d values", v, len(nums))
	}

	header, ok := next()
	if !ok {
		return nil, scanErr(sc, malformed("missing header"))
	}
	width := 1 + nRowMeta + nCols
	if len(header) != width {
		return nil, malformed("header has %d fields, want %d", len(header), width)
	}
	rowMeta := header[1 : 1+nRowMeta]
	columns := header[1+nRowMeta:]

	t := types.NewScoreTable(name)
	t.Columns = append([]string(nil), columns...)

	// Column metadata rows are not needed for ranking.
	for i := 0; i < nColMeta; i++ {
		if _, ok := next(); !ok {
			return nil, scanErr(sc, malformed("missing column metadata row %d", i+1))
		}
	}

	rows := 0
	for {
		fields, ok := next()
		if !ok {
			break
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		rows++
		if len(fields) != width {
			return nil, malformed("row has %d fields, want %d", len(fields), width)
		}

		id := strings.TrimSpace(fields[0])
		if id == "" {
			return nil, malformed("empty row id")
		}
		if _, dup := t.Rows[id]; dup {
			return nil, malformed("duplicate row id %q", id)
		}

		scores := make(map[string]float64, nCols)
		valid := true
		for j, cell := range fields[1+nRowMeta:] {
			f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(f) {
				valid = false
				break
			}
			scores[columns[j]] = f
		}
		if !valid {
			t.Excluded++
			continue
		}

		meta := make(map[string]string, nRowMeta)
		for j, field := range rowMeta {
			meta[field] = strings.TrimSpace(fields[1+j])
		}
		t.Rows[id] = types.ScoreRow{ID: id, Scores: scores, Meta: meta}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading score table: %w", err)
	}
	if rows != nRows {
		return nil, fmt.Errorf("%w: declared %d rows, found %d", ErrMalformedTable, nRows, rows)
	}
	return t, nil
}

func scanErr(sc *bufio.Scanner, fallback error) error {
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading score table: %w", err)
	}
	return fallback
}

func atois(fields []string) ([]int, error) {
	var out []int
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative dimension %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}
