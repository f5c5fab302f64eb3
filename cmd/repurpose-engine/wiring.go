// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pdiddy/repurpose-engine/internal/archive"
	"github.com/pdiddy/repurpose-engine/internal/chembl"
	"github.com/pdiddy/repurpose-engine/internal/cmap"
	"github.com/pdiddy/repurpose-engine/internal/genemap"
	"github.com/pdiddy/repurpose-engine/internal/ledger"
	"github.com/pdiddy/repurpose-engine/internal/recommend"
	"github.com/pdiddy/repurpose-engine/internal/secrets"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

func newHTTPClient(cfg types.HTTPConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}

// newClueClient returns the scoring service client, failing early when no
// API key is configured.
func newClueClient(cfg types.ScoringConfig) (*cmap.ClueClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no CLUE API key: set scoring.api_key, REPURPOSE_ENGINE_SCORING_API_KEY, or .secrets/%s", secrets.ClueAPIKey)
	}
	return &cmap.ClueClient{Client: newHTTPClient(cfg.HTTPConfig), Config: cfg}, nil
}

// newTranslator loads the gene_info table, downloading it on first use,
// and adds HGNC alias resolution when enabled.
func newTranslator(ctx context.Context, cfg types.ScoringConfig, w io.Writer) (*genemap.Translator, error) {
	client := newHTTPClient(cfg.HTTPConfig)
	if _, err := genemap.EnsureGeneInfo(ctx, client, cfg, w); err != nil {
		return nil, err
	}
	m, err := genemap.LoadGeneInfo(cfg.GeneInfoPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("genes", len(m)).Str("path", cfg.GeneInfoPath).Msg("loaded gene map")

	tr := &genemap.Translator{Mapper: m, Logger: logger}
	if cfg.ResolveAliases {
		tr.Aliases = &genemap.HGNCClient{Client: client, UserAgent: cfg.UserAgent, MaxRetries: cfg.MaxRetries}
	}
	return tr, nil
}

// newOrchestrator wires the scoring client, translator, and ledger.
// A nil store runs without a ledger.
func newOrchestrator(ctx context.Context, cfg types.PipelineConfig, store *ledger.Store, w io.Writer) (*cmap.Orchestrator, error) {
	o, err := newPoller(cfg, store, w)
	if err != nil {
		return nil, err
	}
	tr, err := newTranslator(ctx, cfg.Scoring, w)
	if err != nil {
		return nil, err
	}
	o.Translator = tr
	return o, nil
}

// newPoller returns an orchestrator that can poll and fetch existing jobs
// but not submit new ones, so it skips loading the gene map.
func newPoller(cfg types.PipelineConfig, store *ledger.Store, w io.Writer) (*cmap.Orchestrator, error) {
	svc, err := newClueClient(cfg.Scoring)
	if err != nil {
		return nil, err
	}
	o := cmap.NewOrchestrator(svc, nil, cfg.Scoring, logger)
	if store != nil {
		o.Recorder = store
	}
	o.Out = w
	return o, nil
}

func newParser(cfg types.PipelineConfig) *archive.Parser {
	return archive.NewParser(cfg.Archive, logger)
}

func newAggregator(cfg types.RecommendConfig) *recommend.Aggregator {
	src := &chembl.Client{
		Client:     newHTTPClient(cfg.HTTPConfig),
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
	}
	return recommend.NewAggregator(src, cfg, logger)
}

func openLedger(cfg types.PipelineConfig) (*ledger.Store, error) {
	store, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", store.Path()).Msg("opened job ledger")
	return store, nil
}
