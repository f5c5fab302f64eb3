// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Outcome classifies a discovery attempt.
type Outcome int

const (
	Found Outcome = iota
	Missing
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Missing:
		return "missing"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Discovery is the result of searching an extracted tree for a file
// whose name is only known by pattern.
type Discovery struct {
	Outcome Outcome
	Pattern string

	// Path is the single match when Outcome is Found.
	Path string

	// Candidates lists every match, sorted.
	Candidates []string

	// Searched lists the directories that were scanned.
	Searched []string
}

// Locate scans each of dirs (relative to root) for regular files matching
// pattern. Directories that do not exist are skipped.
func Locate(root string, dirs []string, pattern string) (Discovery, error) {
	if !doublestar.ValidatePattern(pattern) {
		return Discovery{}, fmt.Errorf("invalid file pattern %q", pattern)
	}
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	d := Discovery{Pattern: pattern}
	seen := make(map[string]bool)
	for _, dir := range dirs {
		base := filepath.Join(root, filepath.FromSlash(dir))
		d.Searched = append(d.Searched, base)
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			continue
		}

		fsys := os.DirFS(base)
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return Discovery{}, fmt.Errorf("scanning %s: %w", base, err)
		}
		for _, m := range matches {
			info, err := fs.Stat(fsys, m)
			if err != nil || !info.Mode().IsRegular() || strings.HasPrefix(path.Base(m), ".") {
				continue
			}
			full := filepath.Join(base, filepath.FromSlash(m))
			if !seen[full] {
				seen[full] = true
				d.Candidates = append(d.Candidates, full)
			}
		}
	}
	sort.Strings(d.Candidates)

	switch len(d.Candidates) {
	case 0:
		d.Outcome = Missing
	case 1:
		d.Outcome = Found
		d.Path = d.Candidates[0]
	default:
		d.Outcome = Ambiguous
	}
	return d, nil
}

// Require returns the single match or the error describing why there is
// none.
func (d Discovery) Require() (string, error) {
	switch d.Outcome {
	case Found:
		return d.Path, nil
	case Ambiguous:
		return "", fmt.Errorf("%w: %d files match %s: %s",
			ErrAmbiguousResultFile, len(d.Candidates), d.Pattern, strings.Join(d.Candidates, ", "))
	default:
		return "", fmt.Errorf("%w: no file matches %s in %s",
			ErrResultFileMissing, d.Pattern, strings.Join(d.Searched, ", "))
	}
}
