// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// AnalysisMode selects how multiple expression files are analyzed.
type AnalysisMode string

const (
	// ModeCombined merges all files into one matrix before testing.
	ModeCombined AnalysisMode = "combined"

	// ModePerFile tests each file independently and reconciles the results.
	ModePerFile AnalysisMode = "per-file"
)

// Valid reports whether m is a recognized analysis mode.
func (m AnalysisMode) Valid() bool {
	return m == ModeCombined || m == ModePerFile
}

// Direction is the regulation direction of a gene in a signature.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Signature holds the up- and down-regulated gene sets submitted to the
// scoring service. Genes appear in rank order and each list is duplicate
// free. Up and Down never share a gene.
type Signature struct {
	// Up lists up-regulated gene symbols, strongest effect first.
	Up []string `json:"up" yaml:"up"`

	// Down lists down-regulated gene symbols, strongest effect first.
	Down []string `json:"down" yaml:"down"`

	// Mode records the analysis mode that produced the signature.
	Mode AnalysisMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// IsEmpty reports whether either direction has no genes.
func (s Signature) IsEmpty() bool {
	return len(s.Up) == 0 || len(s.Down) == 0
}

// Validate checks that both sets are non-empty, duplicate free and
// disjoint.
func (s Signature) Validate() error {
	if s.IsEmpty() {
		return fmt.Errorf("signature needs at least one up and one down gene (up=%d, down=%d)", len(s.Up), len(s.Down))
	}
	seen := make(map[string]Direction, len(s.Up)+len(s.Down))
	for _, g := range s.Up {
		if _, dup := seen[g]; dup {
			return fmt.Errorf("gene %q listed twice in up set", g)
		}
		seen[g] = DirectionUp
	}
	for _, g := range s.Down {
		if d, dup := seen[g]; dup {
			if d == DirectionUp {
				return fmt.Errorf("gene %q listed in both up and down sets", g)
			}
			return fmt.Errorf("gene %q listed twice in down set", g)
		}
		seen[g] = DirectionDown
	}
	return nil
}

// DEGResult is one gene's row of a differential-expression result.
type DEGResult struct {
	// Gene is the gene symbol.
	Gene string `json:"gene" yaml:"gene"`

	// BaseMean is the mean normalized count across all samples.
	BaseMean float64 `json:"base_mean" yaml:"base_mean"`

	// Log2FoldChange is the case-versus-reference effect size.
	Log2FoldChange float64 `json:"log2_fold_change" yaml:"log2_fold_change"`

	// Stat is the test statistic.
	Stat float64 `json:"stat" yaml:"stat"`

	// PValue is the unadjusted p-value.
	PValue float64 `json:"pvalue" yaml:"pvalue"`

	// PAdj is the Benjamini-Hochberg adjusted p-value.
	PAdj float64 `json:"padj" yaml:"padj"`
}
