// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/repurpose-engine/internal/archive"
	"github.com/pdiddy/repurpose-engine/internal/cmap"
	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/internal/recommend"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

const pertSummary = "#1.3\n" +
	"3\t1\t1\t0\n" +
	"id\tpert_type\tTAG\n" +
	"BRD-K0001\ttrt_cp\t95.5\n" +
	"BRD-K0002\ttrt_cp\t-80.25\n" +
	"BRD-K0003\ttrt_cp\tNaN\n"

const connectivity = "#1.3\n" +
	"2\t1\t2\t0\n" +
	"rid\tpert_id\tpert_iname\tTAG\n" +
	"sig1\tBRD-K0001\taspirin\t1.5\n" +
	"sig2\tBRD-K0002\tmetformin\t-1.2\n"

type staticSignature struct {
	sig types.Signature
	err error
}

func (s staticSignature) Extract(context.Context) (types.Signature, error) {
	return s.sig, s.err
}

// treeRunner completes a job by laying out an extracted result tree.
type treeRunner struct {
	dir string
	err error
	got types.Signature
}

func (r *treeRunner) Run(_ context.Context, sig types.Signature) (*types.Job, error) {
	r.got = sig
	job := &types.Job{ID: "job-1", RunID: "run-1", Status: types.JobCompleted}
	if r.err != nil {
		job.Status = types.JobFailed
		return job, &cmap.JobError{JobID: job.ID, Status: job.Status, Err: r.err}
	}
	root := filepath.Join(r.dir, "analysis")
	write := func(rel, body string) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err == nil {
			os.WriteFile(p, []byte(body), 0o644)
		}
	}
	write("arfs/TAG/pert_id_summary.gct", pertSummary)
	write("cs_n2x1.gct", connectivity)
	job.ResultPath = r.dir
	return job, nil
}

type catalog map[string]*types.CompoundRecord

func (c catalog) LookupByName(_ context.Context, name string) (*types.CompoundRecord, error) {
	if name == "metformin" {
		return nil, errors.New("HTTP 503")
	}
	return c[name], nil
}

func (c catalog) SimilarByStructure(context.Context, string, int, int) ([]types.SimilarCompound, error) {
	return nil, nil
}

func newTestPipeline(t *testing.T, runner JobRunner) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := types.DefaultPipelineConfig()
	cfg.WorkDir = filepath.Join(dir, "work")
	cfg.Archive.WorkDir = filepath.Join(dir, "work", "results")
	cfg.Recommend.Format = types.ReportYAML

	var out bytes.Buffer
	return &Pipeline{
		Config:    cfg,
		Signature: staticSignature{sig: types.Signature{Up: []string{"TP53", "MYC"}, Down: []string{"EGFR"}, Mode: types.ModeCombined}},
		Jobs:      runner,
		Parser:    archive.NewParser(cfg.Archive, zerolog.Nop()),
		Enricher: recommend.NewAggregator(catalog{
			"aspirin": {ChEMBLID: "CHEMBL25", PrefName: "ASPIRIN"},
		}, cfg.Recommend, zerolog.Nop()),
		Logger: zerolog.Nop(),
		Out:    &out,
	}, &out
}

func TestRun(t *testing.T) {
	runner := &treeRunner{dir: t.TempDir()}
	p, out := newTestPipeline(t, runner)

	s, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"TP53", "MYC"}, runner.got.Up)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "job-1", s.JobID)
	assert.Equal(t, 2, s.Up)
	assert.Equal(t, 1, s.Down)
	assert.Equal(t, 1, s.ExcludedRows)
	assert.Equal(t, 2, s.Ranked)
	assert.Equal(t, 1, s.Enriched)
	assert.Equal(t, 1, s.Failed)

	saved, err := deg.ReadSignatureFile(s.SignaturePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"EGFR"}, saved.Down)

	assert.Equal(t, filepath.Join(p.Config.WorkDir, "recommendations.yaml"), s.ReportPath)
	data, err := os.ReadFile(s.ReportPath)
	require.NoError(t, err)
	var entries []types.RecommendationEntry
	require.NoError(t, yaml.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "BRD-K0001", entries[0].CompoundID)
	assert.Equal(t, "aspirin", entries[0].Name)
	require.NotNil(t, entries[0].Compound)
	assert.Equal(t, "CHEMBL25", entries[0].Compound.ChEMBLID)
	assert.Equal(t, "metformin", entries[1].Name)
	assert.Contains(t, entries[1].EnrichmentError, "HTTP 503")

	assert.Contains(t, out.String(), "signature: 2 up, 1 down")
	assert.Contains(t, out.String(), "warning: 1 compound(s) without metadata")
	assert.Contains(t, out.String(), "run run-1: job job-1, 2 ranked, 1 enriched, 1 failed")
}

func TestRun_SignatureError(t *testing.T) {
	runner := &treeRunner{dir: t.TempDir()}
	p, _ := newTestPipeline(t, runner)
	p.Signature = staticSignature{err: deg.ErrEmptySignature}

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, deg.ErrEmptySignature)
	assert.Empty(t, runner.got.Up)
}

func TestRun_JobFailureKeepsJobID(t *testing.T) {
	p, _ := newTestPipeline(t, &treeRunner{dir: t.TempDir(), err: cmap.ErrJobFailed})

	s, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cmap.ErrJobFailed)

	var jerr *cmap.JobError
	require.True(t, errors.As(err, &jerr))
	assert.Equal(t, "job-1", jerr.JobID)
	assert.Equal(t, "job-1", s.JobID)
	assert.Empty(t, s.ReportPath)
}

func TestRecommend_MissingResultFile(t *testing.T) {
	p, _ := newTestPipeline(t, nil)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "arfs", "TAG"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arfs", "TAG", "pert_id_summary.gct"), []byte(pertSummary), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("tool: sig_gutc_tool\n"), 0o644))

	err := p.Recommend(context.Background(), &Summary{ArchivePath: dir})
	assert.ErrorIs(t, err, archive.ErrResultFileMissing)
}
