// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// MetadataSource looks up compound records and structural neighbors.
// Implemented by chembl.Client.
type MetadataSource interface {
	LookupByName(ctx context.Context, name string) (*types.CompoundRecord, error)
	SimilarByStructure(ctx context.Context, smiles string, threshold, limit int) ([]types.SimilarCompound, error)
}

// NameResolver maps compound identifiers to names. Implemented by
// archive.Result.
type NameResolver interface {
	CompoundName(id string) (string, bool)
}

// EnrichmentError records a failed metadata lookup for one compound.
type EnrichmentError struct {
	CompoundID string
	Stage      string
	Err        error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.CompoundID, e.Stage, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// Report is the outcome of aggregation.
type Report struct {
	Entries []types.RecommendationEntry

	// Warnings aggregates every EnrichmentError; nil when all lookups
	// succeeded.
	Warnings error
}

// Aggregator joins ranked candidates with external metadata.
type Aggregator struct {
	Source MetadataSource
	Config types.RecommendConfig
	Logger zerolog.Logger
}

// NewAggregator returns an Aggregator using src for lookups.
func NewAggregator(src MetadataSource, cfg types.RecommendConfig, logger zerolog.Logger) *Aggregator {
	return &Aggregator{Source: src, Config: cfg, Logger: logger}
}

// Aggregate builds one entry per candidate, in order. Lookup failures are
// recorded on the entry and collected in Report.Warnings; only context
// cancellation returns an error.
func (a *Aggregator) Aggregate(ctx context.Context, cands []Candidate, names NameResolver) (*Report, error) {
	var warnings *multierror.Error
	firstByChEMBL := make(map[string]int)
	rep := &Report{Entries: make([]types.RecommendationEntry, 0, len(cands))}

	for i, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := types.RecommendationEntry{
			Rank:           i + 1,
			CompoundID:     c.ID,
			Name:           c.Name,
			Score:          c.Score,
			SecondaryScore: c.Secondary,
		}
		if e.Name == "" && names != nil {
			e.Name, _ = names.CompoundName(c.ID)
		}

		if a.Source != nil {
			if err := a.enrich(ctx, &e, rep.Entries, firstByChEMBL); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				e.EnrichmentError = err.Error()
				warnings = multierror.Append(warnings, err)
			}
		}
		// A molecule whose enrichment failed is not a reference; a later
		// candidate resolving to it looks its neighbors up again.
		if e.Compound != nil && e.DuplicateOf == "" && e.EnrichmentError == "" {
			firstByChEMBL[e.Compound.ChEMBLID] = len(rep.Entries)
		}
		rep.Entries = append(rep.Entries, e)
	}

	if err := warnings.ErrorOrNil(); err != nil {
		a.Logger.Warn().Err(err).Int("failed", warnings.Len()).Msg("enrichment incomplete")
		rep.Warnings = err
	}
	return rep, nil
}

func (a *Aggregator) enrich(ctx context.Context, e *types.RecommendationEntry, prior []types.RecommendationEntry, firstByChEMBL map[string]int) error {
	if e.Name == "" {
		a.Logger.Debug().Str("compound", e.CompoundID).Msg("no compound name, skipping lookup")
		return nil
	}

	rec, err := a.Source.LookupByName(ctx, e.Name)
	if err != nil {
		return &EnrichmentError{CompoundID: e.CompoundID, Stage: "search", Err: err}
	}
	if rec == nil {
		a.Logger.Debug().Str("compound", e.CompoundID).Str("name", e.Name).Msg("no ChEMBL match")
		return nil
	}
	e.Compound = rec

	if idx, ok := firstByChEMBL[rec.ChEMBLID]; ok {
		e.DuplicateOf = prior[idx].CompoundID
		e.Similar = prior[idx].Similar
		return nil
	}
	if rec.SMILES == "" {
		return nil
	}

	sims, err := a.Source.SimilarByStructure(ctx, rec.SMILES, a.Config.SimilarityThreshold, a.Config.SimilarityLimit)
	if err != nil {
		return &EnrichmentError{CompoundID: e.CompoundID, Stage: "similarity", Err: err}
	}
	e.Similar = a.neighbors(rec.ChEMBLID, sims)
	return nil
}

// neighbors drops the molecule itself and neighbors below the configured
// clinical phase. Neighbors of unknown phase are kept only when no
// minimum is set.
func (a *Aggregator) neighbors(self string, sims []types.SimilarCompound) []types.SimilarCompound {
	var out []types.SimilarCompound
	for _, s := range sims {
		if s.ChEMBLID == self {
			continue
		}
		if a.Config.MinNeighborPhase > 0 && (s.MaxPhase == nil || *s.MaxPhase < a.Config.MinNeighborPhase) {
			continue
		}
		out = append(out, s)
	}
	return out
}
