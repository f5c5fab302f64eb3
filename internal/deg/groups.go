// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultGroupFile is the group-definition file name looked up in the data
// directory when none is configured.
const DefaultGroupFile = "dataset_label.txt"

// FileGroups assigns group labels to the sample columns of one expression file.
type FileGroups struct {
	// File is the expression file name, relative to the data directory.
	File string

	// Labels holds one label per sample column, or a single label that
	// applies to every column.
	Labels []string
}

// LabelsFor expands Labels to n sample columns.
func (g FileGroups) LabelsFor(n int) ([]string, error) {
	switch len(g.Labels) {
	case n:
		return g.Labels, nil
	case 1:
		out := make([]string, n)
		for i := range out {
			out[i] = g.Labels[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has %d sample columns but %d labels", ErrMalformedGroupFile, g.File, n, len(g.Labels))
	}
}

// LoadGroupFile reads and parses a group-definition file.
func LoadGroupFile(path string) ([]FileGroups, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGroupFile, err)
	}
	defer f.Close()
	return ParseGroupFile(f)
}

// ParseGroupFile parses the group-definition format:
//
//	# comment
//	>>control_rep.tsv
//	wt,wt,mut,mut
//	>>treated.csv
//	treated
//
// A ">>" line opens a block for one file; the next line lists its labels.
// Labels are trimmed and lower-cased. Blocks keep file order.
func ParseGroupFile(r io.Reader) ([]FileGroups, error) {
	var groups []FileGroups
	seen := make(map[string]bool)
	current := -1

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, ">>") {
			name := strings.TrimSpace(strings.TrimPrefix(line, ">>"))
			if name == "" {
				return nil, fmt.Errorf("%w: line %d: empty file name", ErrMalformedGroupFile, lineNo)
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: line %d: file %s listed twice", ErrMalformedGroupFile, lineNo, name)
			}
			seen[name] = true
			groups = append(groups, FileGroups{File: name})
			current = len(groups) - 1
			continue
		}

		if current < 0 {
			return nil, fmt.Errorf("%w: line %d: labels before any >> file line", ErrMalformedGroupFile, lineNo)
		}
		if groups[current].Labels != nil {
			return nil, fmt.Errorf("%w: line %d: second label line for %s", ErrMalformedGroupFile, lineNo, groups[current].File)
		}

		var labels []string
		for _, v := range strings.Split(line, ",") {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				return nil, fmt.Errorf("%w: line %d: empty label", ErrMalformedGroupFile, lineNo)
			}
			labels = append(labels, v)
		}
		groups[current].Labels = labels
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGroupFile, err)
	}

	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no >> file lines", ErrMalformedGroupFile)
	}
	for _, g := range groups {
		if len(g.Labels) == 0 {
			return nil, fmt.Errorf("%w: file %s has no labels", ErrMalformedGroupFile, g.File)
		}
	}
	return groups, nil
}
