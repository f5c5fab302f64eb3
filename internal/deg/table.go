// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deg

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Matrix is a gene-by-sample expression table. Missing cells are NaN.
type Matrix struct {
	Genes   []string
	Samples []string
	Values  [][]float64
}

// ReadTable reads a .tsv or .csv expression table. The first column holds
// gene symbols and the header row holds sample names. Empty and "NA"
// cells are read as missing.
func ReadTable(path string) (*Matrix, error) {
	var comma rune
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		comma = '\t'
	case ".csv":
		comma = ','
	default:
		return nil, fmt.Errorf("unsupported expression file type: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening expression file: %w", err)
	}
	defer f.Close()

	m, err := parseTable(f, comma)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

func parseTable(r io.Reader, comma rune) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs a gene column and at least one sample")
	}

	m := &Matrix{Samples: trimAll(header[1:])}
	seen := make(map[string]bool)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, want %d", line, len(rec), len(header))
		}

		gene := strings.TrimSpace(rec[0])
		if gene == "" {
			return nil, fmt.Errorf("line %d: empty gene symbol", line)
		}
		if seen[gene] {
			return nil, fmt.Errorf("line %d: duplicate gene %s", line, gene)
		}
		seen[gene] = true

		row := make([]float64, len(rec)-1)
		for i, cell := range rec[1:] {
			row[i] = parseCell(cell)
		}
		m.Genes = append(m.Genes, gene)
		m.Values = append(m.Values, row)
	}
	return m, nil
}

func parseCell(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// DropIncomplete removes genes with any missing cell and returns the
// number removed. Missing values are never imputed.
func (m *Matrix) DropIncomplete() int {
	return m.filter(func(row []float64) bool {
		for _, v := range row {
			if math.IsNaN(v) {
				return false
			}
		}
		return true
	})
}

// DropLowCounts removes genes whose counts are below min in every sample
// and returns the number removed.
func (m *Matrix) DropLowCounts(min float64) int {
	return m.filter(func(row []float64) bool {
		for _, v := range row {
			if v >= min {
				return true
			}
		}
		return false
	})
}

func (m *Matrix) filter(keep func([]float64) bool) int {
	genes := m.Genes[:0]
	values := m.Values[:0]
	removed := 0
	for i, row := range m.Values {
		if !keep(row) {
			removed++
			continue
		}
		genes = append(genes, m.Genes[i])
		values = append(values, row)
	}
	m.Genes = genes
	m.Values = values
	return removed
}

// JoinColumns merges matrices side by side, keeping only genes present in
// every matrix, in the order of the first.
func JoinColumns(ms ...*Matrix) *Matrix {
	if len(ms) == 0 {
		return &Matrix{}
	}

	index := make([]map[string]int, len(ms))
	for k, m := range ms {
		index[k] = make(map[string]int, len(m.Genes))
		for i, g := range m.Genes {
			index[k][g] = i
		}
	}

	out := &Matrix{}
	for _, m := range ms {
		out.Samples = append(out.Samples, m.Samples...)
	}

	for _, g := range ms[0].Genes {
		var row []float64
		present := true
		for k, m := range ms {
			i, ok := index[k][g]
			if !ok {
				present = false
				break
			}
			row = append(row, m.Values[i]...)
		}
		if present {
			out.Genes = append(out.Genes, g)
			out.Values = append(out.Values, row)
		}
	}
	return out
}
