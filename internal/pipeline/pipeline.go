// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the repurposing workflow end to end: signature
// extraction, remote scoring, result parsing, and recommendation.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/internal/archive"
	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/internal/recommend"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// File names written under the work directory.
const (
	SignatureFile = "signature.yaml"
	reportBase    = "recommendations"
)

// SignatureSource produces the signature for a run.
type SignatureSource interface {
	Extract(ctx context.Context) (types.Signature, error)
}

// JobRunner submits a signature and returns the completed job with its
// archive downloaded.
type JobRunner interface {
	Run(ctx context.Context, sig types.Signature) (*types.Job, error)
}

// ResultParser turns a downloaded archive into score tables.
type ResultParser interface {
	Parse(ctx context.Context, archivePath, resultName string) (*archive.Result, error)
}

// Enricher joins ranked candidates with compound metadata.
type Enricher interface {
	Aggregate(ctx context.Context, cands []recommend.Candidate, names recommend.NameResolver) (*recommend.Report, error)
}

// Summary holds counts and paths from one run.
type Summary struct {
	RunID         string
	JobID         string
	Up            int
	Down          int
	SignaturePath string
	ArchivePath   string
	ReportPath    string
	ExcludedRows  int
	Ranked        int
	Enriched      int
	Failed        int
	Elapsed       time.Duration
}

// Pipeline wires the stages of one run. Each run owns its own Pipeline;
// nothing is shared between runs except the optional ledger behind the
// JobRunner.
type Pipeline struct {
	Config    types.PipelineConfig
	Signature SignatureSource
	Jobs      JobRunner
	Parser    ResultParser
	Enricher  Enricher
	Logger    zerolog.Logger
	Out       io.Writer
}

// Run executes every stage in order and stops at the first error. Errors
// keep the stage's own kind so callers can match them with errors.Is and
// errors.As.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	w := p.out()
	s := &Summary{}

	sig, err := p.Signature.Extract(ctx)
	if err != nil {
		return s, fmt.Errorf("extracting signature: %w", err)
	}
	s.Up, s.Down = len(sig.Up), len(sig.Down)

	if err := os.MkdirAll(p.Config.WorkDir, 0o755); err != nil {
		return s, fmt.Errorf("creating work directory: %w", err)
	}
	s.SignaturePath = filepath.Join(p.Config.WorkDir, SignatureFile)
	if err := deg.WriteSignatureFile(s.SignaturePath, sig, p.Config.Signature); err != nil {
		return s, fmt.Errorf("writing signature: %w", err)
	}
	fmt.Fprintf(w, "signature: %d up, %d down -> %s\n", s.Up, s.Down, s.SignaturePath)

	job, err := p.Jobs.Run(ctx, sig)
	if job != nil {
		s.RunID, s.JobID, s.ArchivePath = job.RunID, job.ID, job.ResultPath
	}
	if err != nil {
		return s, err
	}

	if err := p.Recommend(ctx, s); err != nil {
		return s, err
	}

	s.Elapsed = time.Since(start)
	fmt.Fprintf(w, "\nrun %s: job %s, %d ranked, %d enriched, %d failed (%s)\n",
		s.RunID, s.JobID, s.Ranked, s.Enriched, s.Failed, s.Elapsed.Round(time.Second))
	return s, nil
}

// Recommend parses the archive at s.ArchivePath and writes the report,
// filling in the remaining Summary fields. It is the resumable tail of
// Run: it never contacts the scoring service.
func (p *Pipeline) Recommend(ctx context.Context, s *Summary) error {
	w := p.out()

	res, err := p.Parser.Parse(ctx, s.ArchivePath, archive.ResultName(s.ArchivePath))
	if err != nil {
		return fmt.Errorf("parsing results: %w", err)
	}
	s.ExcludedRows = res.PertSummary.Excluded + res.Connectivity.Excluded

	cands := recommend.Rank(res.PertSummary, p.Config.Recommend)
	s.Ranked = len(cands)
	if len(cands) == 0 {
		p.Logger.Warn().Str("column", p.Config.Recommend.ScoreColumn).Msg("no compounds ranked")
	}

	rep, err := p.Enricher.Aggregate(ctx, cands, res)
	if err != nil {
		return fmt.Errorf("enriching recommendations: %w", err)
	}
	for _, e := range rep.Entries {
		switch {
		case e.EnrichmentError != "":
			s.Failed++
		case e.Compound != nil:
			s.Enriched++
		}
	}
	if rep.Warnings != nil {
		fmt.Fprintf(w, "warning: %d compound(s) without metadata\n", s.Failed)
	}

	format := p.Config.Recommend.Format
	s.ReportPath = filepath.Join(p.Config.WorkDir, reportBase+recommend.ReportExt(format))
	if err := recommend.WriteReport(s.ReportPath, rep.Entries, format); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(w, "report: %s (%d compounds)\n", s.ReportPath, len(rep.Entries))
	return nil
}

func (p *Pipeline) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}
