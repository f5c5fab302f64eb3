// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive turns a downloaded scoring-result archive into score
// tables. It extracts the nested tar.gz tree once, discovers the
// job-specific connectivity file, and parses GCT matrices.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var (
	// ErrResultFileMissing reports an expected result file that is absent.
	// Re-extracting or re-fetching may help.
	ErrResultFileMissing = errors.New("result file missing")

	// ErrAmbiguousResultFile reports more than one file matching a pattern
	// that must identify exactly one.
	ErrAmbiguousResultFile = errors.New("ambiguous result file")

	// ErrMalformedTable reports a score file that does not follow the GCT
	// layout.
	ErrMalformedTable = errors.New("malformed score table")
)

// Result holds the tables parsed from one archive.
type Result struct {
	// Root is the analysis root inside the extracted tree.
	Root string

	PertSummary  *types.ScoreTable
	Connectivity *types.ScoreTable
}

// CompoundName returns the name of a compound identifier from the
// connectivity table's pert_id and pert_iname metadata.
func (r *Result) CompoundName(id string) (string, bool) {
	if r.Connectivity == nil {
		return "", false
	}
	if row, ok := r.Connectivity.Get(id); ok {
		if name := row.Meta["pert_iname"]; name != "" {
			return name, true
		}
	}
	for _, row := range r.Connectivity.FindByMeta("pert_id", id) {
		if name := row.Meta["pert_iname"]; name != "" {
			return name, true
		}
	}
	return "", false
}

// Parser extracts and parses result archives.
type Parser struct {
	Config types.ArchiveConfig
	Logger zerolog.Logger
}

// NewParser returns a Parser for cfg.
func NewParser(cfg types.ArchiveConfig, logger zerolog.Logger) *Parser {
	return &Parser{Config: cfg, Logger: logger}
}

// ResultName derives a logical result name from an archive path.
func ResultName(archivePath string) string {
	base := filepath.Base(archivePath)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// Parse extracts archivePath (idempotently) and returns the perturbation
// summary and connectivity tables. An empty resultName is derived from
// the archive file name.
func (p *Parser) Parse(ctx context.Context, archivePath, resultName string) (*Result, error) {
	if resultName == "" {
		resultName = ResultName(archivePath)
	}
	root, err := Extract(ctx, archivePath, p.Config.WorkDir, resultName, p.Logger)
	if err != nil {
		return nil, err
	}

	summaryPath := filepath.Join(root, filepath.FromSlash(p.Config.SummaryPath))
	if _, err := os.Stat(summaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrResultFileMissing, p.Config.SummaryPath)
	}
	summary, err := p.parseFile(summaryPath, types.TablePertSummary)
	if err != nil {
		return nil, err
	}

	d, err := Locate(root, p.Config.SearchDirs, p.Config.ConnectivityPattern)
	if err != nil {
		return nil, err
	}
	connPath, err := d.Require()
	if err != nil {
		return nil, err
	}
	conn, err := p.parseFile(connPath, types.TableConnectivity)
	if err != nil {
		return nil, err
	}

	return &Result{Root: root, PertSummary: summary, Connectivity: conn}, nil
}

func (p *Parser) parseFile(path, name string) (*types.ScoreTable, error) {
	t, err := ParseGCTFile(path, name)
	if err != nil {
		return nil, err
	}
	ev := p.Logger.Info()
	if t.Excluded > 0 {
		ev = p.Logger.Warn()
	}
	ev.Str("table", name).
		Str("file", path).
		Int("rows", t.Len()).
		Int("excluded", t.Excluded).
		Msg("parsed score table")
	return t, nil
}
