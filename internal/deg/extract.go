// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deg derives a gene signature from expression tables: it reads the
// group-definition file, runs a differential-expression test in combined
// or per-file mode, and filters the result into up and down gene sets.
package deg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var (
	// ErrMalformedGroupFile reports a group-definition file that cannot be
	// parsed into file-to-group assignments.
	ErrMalformedGroupFile = errors.New("malformed group file")

	// ErrEmptySignature reports a filtered signature with no genes in at
	// least one direction.
	ErrEmptySignature = errors.New("empty signature")

	// ErrMissingGroup reports an analysis lacking samples of a contrast group.
	ErrMissingGroup = errors.New("missing contrast group")
)

// Extractor turns expression files into a Signature.
type Extractor struct {
	Config types.SignatureConfig
	Tester Tester
	Logger zerolog.Logger
}

// NewExtractor returns an Extractor using the reference WelchTester.
func NewExtractor(cfg types.SignatureConfig, logger zerolog.Logger) *Extractor {
	return &Extractor{Config: cfg, Tester: WelchTester{}, Logger: logger}
}

// Extract reads the configured group file and produces a signature in the
// configured mode.
func (e *Extractor) Extract(ctx context.Context) (types.Signature, error) {
	path := e.Config.GroupFile
	if path == "" {
		path = filepath.Join(e.Config.DataDir, DefaultGroupFile)
	}
	groups, err := LoadGroupFile(path)
	if err != nil {
		return types.Signature{}, err
	}
	return e.ExtractGroups(ctx, groups)
}

// ExtractGroups produces a signature from already-parsed group assignments.
func (e *Extractor) ExtractGroups(ctx context.Context, groups []FileGroups) (types.Signature, error) {
	var sig types.Signature
	var err error

	switch e.Config.Mode {
	case types.ModeCombined, "":
		sig, err = e.combined(ctx, groups)
	case types.ModePerFile:
		sig, err = e.perFile(ctx, groups)
	default:
		return types.Signature{}, fmt.Errorf("unknown analysis mode %q", e.Config.Mode)
	}
	if err != nil {
		return types.Signature{}, err
	}

	e.Logger.Info().
		Str("mode", string(sig.Mode)).
		Int("up", len(sig.Up)).
		Int("down", len(sig.Down)).
		Msg("signature extracted")

	if sig.IsEmpty() {
		return sig, fmt.Errorf("%w: %d up, %d down", ErrEmptySignature, len(sig.Up), len(sig.Down))
	}
	return sig, nil
}

// load reads one file and returns its prepared matrix and expanded labels.
func (e *Extractor) load(g FileGroups) (*Matrix, []string, error) {
	m, err := ReadTable(filepath.Join(e.Config.DataDir, g.File))
	if err != nil {
		return nil, nil, err
	}
	labels, err := g.LabelsFor(len(m.Samples))
	if err != nil {
		return nil, nil, err
	}
	return m, labels, nil
}

// prepare drops incomplete and low-count genes and runs the test.
func (e *Extractor) prepare(name string, m *Matrix, labels []string) ([]types.DEGResult, error) {
	incomplete := m.DropIncomplete()
	low := m.DropLowCounts(e.Config.MinCount)
	e.Logger.Debug().
		Str("input", name).
		Int("genes", len(m.Genes)).
		Int("incomplete", incomplete).
		Int("low_count", low).
		Msg("matrix prepared")

	res, err := e.Tester.Test(m, labels, e.Config.ReferenceGroup, e.Config.CaseGroup)
	if err != nil {
		return nil, fmt.Errorf("testing %s: %w", name, err)
	}
	return res, nil
}

func (e *Extractor) combined(ctx context.Context, groups []FileGroups) (types.Signature, error) {
	var mats []*Matrix
	var labels []string
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return types.Signature{}, err
		}
		m, l, err := e.load(g)
		if err != nil {
			return types.Signature{}, err
		}
		mats = append(mats, m)
		labels = append(labels, l...)
	}

	merged := JoinColumns(mats...)
	res, err := e.prepare("combined", merged, labels)
	if err != nil {
		return types.Signature{}, err
	}

	up, down := Filter(res, e.Config)
	return types.Signature{Up: up, Down: down, Mode: types.ModeCombined}, nil
}

func (e *Extractor) perFile(ctx context.Context, groups []FileGroups) (types.Signature, error) {
	var per []fileSignature
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return types.Signature{}, err
		}
		m, l, err := e.load(g)
		if err != nil {
			return types.Signature{}, err
		}
		res, err := e.prepare(g.File, m, l)
		if err != nil {
			return types.Signature{}, err
		}
		up, down := Filter(res, e.Config)
		per = append(per, fileSignature{up: up, down: down, effect: effects(res)})
		e.Logger.Debug().Str("file", g.File).Int("up", len(up)).Int("down", len(down)).Msg("per-file signature")
	}

	up, down := reconcile(per, e.Config)
	return types.Signature{Up: up, Down: down, Mode: types.ModePerFile}, nil
}

// Filter selects up- and down-regulated genes: |log2 fold change| at or
// above the threshold and adjusted p at or below alpha. Each direction is
// ranked by |fold change| descending, then adjusted p ascending, then gene
// symbol, and truncated to TopN. With FillToTopN a short direction is
// replaced by its TopN same-sign genes of lowest adjusted p.
func Filter(results []types.DEGResult, cfg types.SignatureConfig) (up, down []string) {
	var ups, downs []types.DEGResult
	for _, r := range results {
		if math.IsNaN(r.PAdj) || math.IsNaN(r.Log2FoldChange) || r.PAdj > cfg.Alpha {
			continue
		}
		switch {
		case r.Log2FoldChange >= cfg.Log2FCThreshold && r.Log2FoldChange > 0:
			ups = append(ups, r)
		case r.Log2FoldChange <= -cfg.Log2FCThreshold && r.Log2FoldChange < 0:
			downs = append(downs, r)
		}
	}
	up, down = rankGenes(ups, cfg.TopN), rankGenes(downs, cfg.TopN)
	if cfg.FillToTopN && cfg.TopN > 0 {
		if len(up) < cfg.TopN {
			up = byPAdj(results, cfg.TopN, func(fc float64) bool { return fc > 0 })
		}
		if len(down) < cfg.TopN {
			down = byPAdj(results, cfg.TopN, func(fc float64) bool { return fc < 0 })
		}
	}
	return up, down
}

// byPAdj returns up to n genes whose fold change satisfies sign, ordered
// by adjusted p ascending, then gene symbol.
func byPAdj(results []types.DEGResult, n int, sign func(float64) bool) []string {
	var rs []types.DEGResult
	for _, r := range results {
		if !math.IsNaN(r.PAdj) && !math.IsNaN(r.Log2FoldChange) && sign(r.Log2FoldChange) {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].PAdj != rs[j].PAdj {
			return rs[i].PAdj < rs[j].PAdj
		}
		return rs[i].Gene < rs[j].Gene
	})
	if len(rs) > n {
		rs = rs[:n]
	}
	genes := make([]string, len(rs))
	for i, r := range rs {
		genes[i] = r.Gene
	}
	return genes
}

func rankGenes(rs []types.DEGResult, topN int) []string {
	sort.Slice(rs, func(i, j int) bool {
		ai, aj := math.Abs(rs[i].Log2FoldChange), math.Abs(rs[j].Log2FoldChange)
		if ai != aj {
			return ai > aj
		}
		if rs[i].PAdj != rs[j].PAdj {
			return rs[i].PAdj < rs[j].PAdj
		}
		return rs[i].Gene < rs[j].Gene
	})
	if topN > 0 && len(rs) > topN {
		rs = rs[:topN]
	}
	genes := make([]string, len(rs))
	for i, r := range rs {
		genes[i] = r.Gene
	}
	return genes
}

type fileSignature struct {
	up, down []string
	effect   map[string]float64
}

func effects(rs []types.DEGResult) map[string]float64 {
	m := make(map[string]float64, len(rs))
	for _, r := range rs {
		m[r.Gene] = r.Log2FoldChange
	}
	return m
}

type vote struct {
	gene     string
	up, down int
	effect   float64 // summed |log2 fold change| over supporting files
}

// reconcile merges per-file signatures. A gene survives in a direction
// when at least MinFileFraction of the files put it there. Genes that
// survive in both directions follow the conflict policy.
func reconcile(per []fileSignature, cfg types.SignatureConfig) (up, down []string) {
	votes := make(map[string]*vote)
	get := func(g string) *vote {
		v, ok := votes[g]
		if !ok {
			v = &vote{gene: g}
			votes[g] = v
		}
		return v
	}
	for _, f := range per {
		for _, g := range f.up {
			v := get(g)
			v.up++
			v.effect += math.Abs(f.effect[g])
		}
		for _, g := range f.down {
			v := get(g)
			v.down++
			v.effect += math.Abs(f.effect[g])
		}
	}

	need := cfg.MinFileFraction * float64(len(per))
	var ups, downs []*vote
	for _, v := range votes {
		okUp := float64(v.up) >= need && v.up > 0
		okDown := float64(v.down) >= need && v.down > 0
		if okUp && okDown {
			if cfg.ConflictPolicy != types.ConflictMajority || v.up == v.down {
				continue
			}
			okUp, okDown = v.up > v.down, v.down > v.up
		}
		if okUp {
			ups = append(ups, v)
		} else if okDown {
			downs = append(downs, v)
		}
	}
	return rankVotes(ups, func(v *vote) int { return v.up }, cfg.TopN),
		rankVotes(downs, func(v *vote) int { return v.down }, cfg.TopN)
}

func rankVotes(vs []*vote, count func(*vote) int, topN int) []string {
	sort.Slice(vs, func(i, j int) bool {
		ci, cj := count(vs[i]), count(vs[j])
		if ci != cj {
			return ci > cj
		}
		if vs[i].effect != vs[j].effect {
			return vs[i].effect > vs[j].effect
		}
		return vs[i].gene < vs[j].gene
	})
	if topN > 0 && len(vs) > topN {
		vs = vs[:topN]
	}
	genes := make([]string, len(vs))
	for i, v := range vs {
		genes[i] = v.gene
	}
	return genes
}
