// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

func phase(v float64) *float64 { return &v }

type fakeSource struct {
	records    map[string]*types.CompoundRecord
	searchErrs map[string]error
	similar    map[string][]types.SimilarCompound
	simErr     error
	simErrs    int // failures before similarity calls succeed
	simCalls   int
}

func (f *fakeSource) LookupByName(_ context.Context, name string) (*types.CompoundRecord, error) {
	if err := f.searchErrs[name]; err != nil {
		return nil, err
	}
	return f.records[name], nil
}

func (f *fakeSource) SimilarByStructure(_ context.Context, smiles string, threshold, limit int) ([]types.SimilarCompound, error) {
	f.simCalls++
	if f.simErr != nil {
		return nil, f.simErr
	}
	if f.simErrs > 0 {
		f.simErrs--
		return nil, errors.New("HTTP 503")
	}
	return f.similar[smiles], nil
}

type nameMap map[string]string

func (n nameMap) CompoundName(id string) (string, bool) {
	v, ok := n[id]
	return v, ok
}

func neighbor(id string, p *float64) types.SimilarCompound {
	return types.SimilarCompound{
		CompoundRecord: types.CompoundRecord{ChEMBLID: id, MaxPhase: p},
		Similarity:     80,
	}
}

func testAggregator(src MetadataSource) *Aggregator {
	return NewAggregator(src, types.DefaultPipelineConfig().Recommend, zerolog.Nop())
}

func TestAggregate_Enriches(t *testing.T) {
	src := &fakeSource{
		records: map[string]*types.CompoundRecord{
			"aspirin": {ChEMBLID: "CHEMBL25", PrefName: "ASPIRIN", SMILES: "CC(=O)O", MaxPhase: phase(4)},
		},
		similar: map[string][]types.SimilarCompound{
			"CC(=O)O": {
				neighbor("CHEMBL25", phase(4)),
				neighbor("CHEMBL1", phase(3)),
				neighbor("CHEMBL2", phase(1)),
				neighbor("CHEMBL3", nil),
			},
		},
	}
	cands := []Candidate{{ID: "BRD-K1", Score: 2.5}, {ID: "BRD-K2", Score: 1}}

	rep, err := testAggregator(src).Aggregate(context.Background(), cands, nameMap{"BRD-K1": "aspirin"})
	require.NoError(t, err)
	require.NoError(t, rep.Warnings)
	require.Len(t, rep.Entries, 2)

	first := rep.Entries[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "aspirin", first.Name)
	require.NotNil(t, first.Compound)
	assert.Equal(t, "CHEMBL25", first.Compound.ChEMBLID)
	require.Len(t, first.Similar, 1)
	assert.Equal(t, "CHEMBL1", first.Similar[0].ChEMBLID)

	second := rep.Entries[1]
	assert.Equal(t, 2, second.Rank)
	assert.Empty(t, second.Name)
	assert.Nil(t, second.Compound)
	assert.Empty(t, second.EnrichmentError)
}

func TestAggregate_FailuresDegrade(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{
		records: map[string]*types.CompoundRecord{
			"metformin": {ChEMBLID: "CHEMBL1431", SMILES: "CN(C)C(=N)N=C(N)N"},
		},
		searchErrs: map[string]error{"aspirin": boom},
		simErr:     errors.New("HTTP 500"),
	}
	cands := []Candidate{
		{ID: "BRD-K1", Name: "aspirin", Score: 3},
		{ID: "BRD-K2", Name: "metformin", Score: 2},
		{ID: "BRD-K3", Name: "unknown", Score: 1},
	}

	rep, err := testAggregator(src).Aggregate(context.Background(), cands, nil)
	require.NoError(t, err)
	require.Len(t, rep.Entries, 3)

	assert.Nil(t, rep.Entries[0].Compound)
	assert.Contains(t, rep.Entries[0].EnrichmentError, "connection reset")

	require.NotNil(t, rep.Entries[1].Compound)
	assert.Empty(t, rep.Entries[1].Similar)
	assert.Contains(t, rep.Entries[1].EnrichmentError, "similarity")

	assert.Empty(t, rep.Entries[2].EnrichmentError)

	require.Error(t, rep.Warnings)
	var merr *multierror.Error
	require.True(t, errors.As(rep.Warnings, &merr))
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, rep.Warnings, boom)

	var eerr *EnrichmentError
	require.True(t, errors.As(merr.Errors[1], &eerr))
	assert.Equal(t, "BRD-K2", eerr.CompoundID)
	assert.Equal(t, "similarity", eerr.Stage)
}

func TestAggregate_DuplicateMolecule(t *testing.T) {
	rec := &types.CompoundRecord{ChEMBLID: "CHEMBL25", SMILES: "CC(=O)O"}
	src := &fakeSource{
		records: map[string]*types.CompoundRecord{"aspirin": rec, "acetylsalicylic acid": rec},
		similar: map[string][]types.SimilarCompound{"CC(=O)O": {neighbor("CHEMBL9", phase(4))}},
	}
	cands := []Candidate{
		{ID: "BRD-K1", Name: "aspirin", Score: 3},
		{ID: "BRD-K9", Name: "acetylsalicylic acid", Score: 2},
	}

	rep, err := testAggregator(src).Aggregate(context.Background(), cands, nil)
	require.NoError(t, err)
	assert.Empty(t, rep.Entries[0].DuplicateOf)
	assert.Equal(t, "BRD-K1", rep.Entries[1].DuplicateOf)
	assert.Equal(t, rep.Entries[0].Similar, rep.Entries[1].Similar)
	assert.Equal(t, 1, src.simCalls)
}

func TestAggregate_DuplicateOfFailedEnrichment(t *testing.T) {
	rec := &types.CompoundRecord{ChEMBLID: "CHEMBL25", SMILES: "CC(=O)O"}
	src := &fakeSource{
		records: map[string]*types.CompoundRecord{"aspirin": rec, "acetylsalicylic acid": rec},
		similar: map[string][]types.SimilarCompound{"CC(=O)O": {neighbor("CHEMBL9", phase(4))}},
		simErrs: 1,
	}
	cands := []Candidate{
		{ID: "BRD-K1", Name: "aspirin", Score: 3},
		{ID: "BRD-K9", Name: "acetylsalicylic acid", Score: 2},
	}

	rep, err := testAggregator(src).Aggregate(context.Background(), cands, nil)
	require.NoError(t, err)
	require.Len(t, rep.Entries, 2)

	assert.Contains(t, rep.Entries[0].EnrichmentError, "similarity")
	assert.Empty(t, rep.Entries[0].Similar)

	second := rep.Entries[1]
	assert.Empty(t, second.DuplicateOf)
	assert.Empty(t, second.EnrichmentError)
	require.Len(t, second.Similar, 1)
	assert.Equal(t, "CHEMBL9", second.Similar[0].ChEMBLID)
	assert.Equal(t, 2, src.simCalls)
}

func TestAggregate_NoSource(t *testing.T) {
	rep, err := testAggregator(nil).Aggregate(context.Background(), []Candidate{{ID: "X", Score: 1}}, nil)
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Nil(t, rep.Entries[0].Compound)
}

func TestAggregate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testAggregator(&fakeSource{}).Aggregate(ctx, []Candidate{{ID: "X"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNeighbors_NoPhaseMinimum(t *testing.T) {
	a := testAggregator(nil)
	a.Config.MinNeighborPhase = 0
	got := a.neighbors("CHEMBL25", []types.SimilarCompound{
		neighbor("CHEMBL25", nil),
		neighbor("CHEMBL3", nil),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "CHEMBL3", got[0].ChEMBLID)
}
