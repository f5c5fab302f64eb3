// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// Orchestrator drives scoring jobs from submission to a local archive.
// One Orchestrator may serve many jobs; each job is owned by the call
// that created or resumed it.
type Orchestrator struct {
	Service    Service
	Translator SymbolTranslator
	Recorder   Recorder // optional
	Clock      clock.Clock
	Config     types.ScoringConfig
	Logger     zerolog.Logger

	// Out receives human-readable progress lines.
	Out io.Writer
}

// NewOrchestrator returns an Orchestrator on the wall clock with progress
// output discarded.
func NewOrchestrator(svc Service, tr SymbolTranslator, cfg types.ScoringConfig, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Service:    svc,
		Translator: tr,
		Clock:      clock.New(),
		Config:     cfg,
		Logger:     logger,
		Out:        io.Discard,
	}
}

// Run submits sig, waits for the job to finish and downloads its archive.
// The returned job reflects the last known state even on error.
func (o *Orchestrator) Run(ctx context.Context, sig types.Signature) (*types.Job, error) {
	job, err := o.Submit(ctx, sig)
	if err != nil {
		return job, err
	}
	if err := o.Await(ctx, job); err != nil {
		return job, err
	}
	if _, err := o.FetchResult(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// Submit translates sig to service identifiers and submits it. Empty
// input sets fail with deg.ErrEmptySignature, overlapping or repeated
// genes with ErrInvalidSignature, and sets emptied by translation with
// ErrTranslationExhausted; none of them reaches the service. Identifiers
// that translation puts in both directions are dropped from both. A
// refused submission leaves the job in FAILED_SUBMIT.
func (o *Orchestrator) Submit(ctx context.Context, sig types.Signature) (*types.Job, error) {
	if sig.IsEmpty() {
		return nil, fmt.Errorf("%w: %d up, %d down", deg.ErrEmptySignature, len(sig.Up), len(sig.Down))
	}
	if err := sig.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	up, unmappedUp, err := o.Translator.Translate(ctx, sig.Up)
	if err != nil {
		return nil, fmt.Errorf("translating up genes: %w", err)
	}
	down, unmappedDown, err := o.Translator.Translate(ctx, sig.Down)
	if err != nil {
		return nil, fmt.Errorf("translating down genes: %w", err)
	}
	if n := len(unmappedUp) + len(unmappedDown); n > 0 {
		o.Logger.Warn().
			Strs("up", unmappedUp).
			Strs("down", unmappedDown).
			Msgf("dropped %d genes without an identifier", n)
	}
	up, down, shared := disjoint(up, down)
	if len(shared) > 0 {
		o.Logger.Warn().
			Strs("ids", shared).
			Msgf("dropped %d identifiers mapped from both directions", len(shared))
	}
	if len(up) == 0 || len(down) == 0 {
		return nil, fmt.Errorf("%w: %d up, %d down", ErrTranslationExhausted, len(up), len(down))
	}

	job := types.NewJob(uuid.NewString(), o.Clock.Now())
	job.UpCount, job.DownCount = len(up), len(down)
	o.save(ctx, job)

	id, err := o.Service.Submit(ctx, up, down)
	if err != nil {
		if !errors.Is(err, ErrSubmitRejected) {
			err = fmt.Errorf("%w: %w", ErrSubmitRejected, err)
		}
		o.transition(ctx, job, types.JobFailedSubmit, err.Error())
		return job, &JobError{Status: job.Status, Err: err}
	}

	job.ID = id
	o.transition(ctx, job, types.JobQueued, "")
	fmt.Fprintf(o.Out, "submitted: job %s (%d up, %d down)\n", job.ID, job.UpCount, job.DownCount)
	o.Logger.Info().Str("job", job.ID).Str("run", job.RunID).Msg("job submitted")
	return job, nil
}

// disjoint removes identifiers present in both up and down and returns
// them as shared.
func disjoint(up, down []string) (u, d, shared []string) {
	inUp := make(map[string]bool, len(up))
	for _, id := range up {
		inUp[id] = true
	}
	both := make(map[string]bool)
	for _, id := range down {
		if inUp[id] && !both[id] {
			both[id] = true
			shared = append(shared, id)
		}
	}
	if len(shared) == 0 {
		return up, down, nil
	}
	for _, id := range up {
		if !both[id] {
			u = append(u, id)
		}
	}
	for _, id := range down {
		if !both[id] {
			d = append(d, id)
		}
	}
	return u, d, shared
}

// Await polls the service until job reaches a terminal state. Waits start
// at PollInterval and back off exponentially up to MaxPollInterval.
// Transient status errors are logged and retried on the next poll. When
// MaxWait elapses the job keeps its state and ErrJobTimeout is returned;
// when ctx is cancelled the context error is returned. Neither cancels
// the remote job.
func (o *Orchestrator) Await(ctx context.Context, job *types.Job) error {
	if job.Status == types.JobCompleted {
		return nil
	}
	if job.Status.IsTerminal() {
		return &JobError{JobID: job.ID, Status: job.Status, Err: ErrJobFailed}
	}

	initial, maxInterval := o.Config.PollInterval, o.Config.MaxPollInterval
	if initial <= 0 {
		initial = time.Second
	}
	if maxInterval < initial {
		maxInterval = initial
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = o.Clock
	b.Reset()

	deadline := o.Clock.Now().Add(o.Config.MaxWait)
	fmt.Fprintf(o.Out, "waiting: job %s (up to %s, about %d polls)\n", job.ID, o.Config.MaxWait, pollBudget(initial, maxInterval, o.Config.MaxWait))
	for {
		wait := b.NextBackOff()
		if remaining := deadline.Sub(o.Clock.Now()); wait > remaining {
			wait = remaining
		}
		if wait > 0 {
			timer := o.Clock.Timer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &JobError{JobID: job.ID, Status: job.Status, Err: ctx.Err()}
			case <-timer.C:
			}
		}

		if done, err := o.poll(ctx, job); done {
			return err
		}
		if ctx.Err() != nil {
			return &JobError{JobID: job.ID, Status: job.Status, Err: ctx.Err()}
		}

		if !o.Clock.Now().Before(deadline) {
			job.LastError = ErrJobTimeout.Error()
			o.save(ctx, job)
			return &JobError{
				JobID:  job.ID,
				Status: job.Status,
				Err:    fmt.Errorf("%w after %s", ErrJobTimeout, o.Config.MaxWait),
			}
		}
	}
}

// poll performs one status check. It reports whether the job reached a
// terminal state, with the error to return for it.
func (o *Orchestrator) poll(ctx context.Context, job *types.Job) (bool, error) {
	report, err := o.Service.Status(ctx, job.ID)
	if err != nil {
		o.Logger.Warn().Err(err).Str("job", job.ID).Msg("status poll failed")
		return false, nil
	}

	from := job.Status
	path, err := job.Observe(report.Status, o.Clock.Now())
	if err != nil {
		return true, &JobError{JobID: job.ID, Status: job.Status, Err: err}
	}
	if report.DownloadURL != "" {
		job.ResultURL = report.DownloadURL
	}
	for _, to := range path {
		o.recordTransition(ctx, job, from, to, "")
		from = to
	}
	o.save(ctx, job)

	o.Logger.Debug().Str("job", job.ID).Str("remote", string(report.Status)).Str("status", string(job.Status)).Msg("polled")

	switch job.Status {
	case types.JobCompleted:
		fmt.Fprintf(o.Out, "completed: job %s\n", job.ID)
		return true, nil
	case types.JobFailed, types.JobFailedSubmit:
		job.LastError = ErrJobFailed.Error()
		o.save(ctx, job)
		fmt.Fprintf(o.Out, "failed: job %s\n", job.ID)
		return true, &JobError{JobID: job.ID, Status: job.Status, Err: ErrJobFailed}
	}
	return false, nil
}

// FetchResult downloads the archive of a completed job into ResultsDir as
// cmap_result_<job>.tar.gz and returns its path. An archive already on
// disk is reused. Failures leave the job COMPLETED so the call can be
// repeated.
func (o *Orchestrator) FetchResult(ctx context.Context, job *types.Job) (string, error) {
	if job.Status != types.JobCompleted {
		return "", &JobError{JobID: job.ID, Status: job.Status, Err: ErrJobNotCompleted}
	}

	dest := filepath.Join(o.Config.ResultsDir, fmt.Sprintf("cmap_result_%s.tar.gz", job.ID))
	if job.ResultPath != "" {
		if _, err := os.Stat(job.ResultPath); err == nil {
			return job.ResultPath, nil
		}
	}
	if _, err := os.Stat(dest); err == nil {
		job.ResultPath = dest
		o.save(ctx, job)
		return dest, nil
	}

	if err := o.download(ctx, job, dest); err != nil {
		job.LastError = err.Error()
		o.save(ctx, job)
		return "", &JobError{JobID: job.ID, Status: job.Status, Err: fmt.Errorf("%w: %w", ErrResultFetchFailed, err)}
	}

	job.ResultPath = dest
	job.LastError = ""
	o.save(ctx, job)
	fmt.Fprintf(o.Out, "downloaded: %s\n", dest)
	return dest, nil
}

func (o *Orchestrator) download(ctx context.Context, job *types.Job, dest string) error {
	if job.ResultURL == "" {
		report, err := o.Service.Status(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("resolving download URL: %w", err)
		}
		job.ResultURL = report.DownloadURL
	}
	if job.ResultURL == "" {
		return errors.New("service reported no download URL")
	}

	if err := os.MkdirAll(o.Config.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(o.Config.ResultsDir, ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	fetchErr := o.Service.Fetch(ctx, job.ResultURL, tmpFile)
	closeErr := tmpFile.Close()
	if fetchErr != nil {
		os.Remove(tmpPath)
		return fetchErr
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Resume re-attaches to a previously submitted job. The record comes from
// the Recorder when one knows the job; otherwise the job is assumed
// QUEUED. Polling and fetching continue as in Run.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (*types.Job, error) {
	var job *types.Job
	if o.Recorder != nil {
		stored, found, err := o.Recorder.LoadJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("loading job %s: %w", jobID, err)
		}
		if found {
			job = &stored
		}
	}
	if job == nil {
		job = &types.Job{ID: jobID, RunID: uuid.NewString(), Status: types.JobQueued, SubmittedAt: o.Clock.Now()}
		o.save(ctx, job)
	}
	fmt.Fprintf(o.Out, "resuming: job %s (%s)\n", job.ID, job.Status)

	if err := o.Await(ctx, job); err != nil {
		return job, err
	}
	if _, err := o.FetchResult(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// transition applies one state change and records it.
func (o *Orchestrator) transition(ctx context.Context, job *types.Job, to types.JobStatus, note string) {
	from := job.Status
	if err := job.Transition(to); err != nil {
		// Only reachable through a programming error; keep the old state.
		o.Logger.Error().Err(err).Str("run", job.RunID).Msg("rejected transition")
		return
	}
	if note != "" {
		job.LastError = note
	}
	o.recordTransition(ctx, job, from, to, note)
	o.save(ctx, job)
}

// recordTransition and save write through a context detached from
// cancellation so the ledger never lags the in-memory job.
func (o *Orchestrator) recordTransition(ctx context.Context, job *types.Job, from, to types.JobStatus, note string) {
	o.Logger.Info().Str("job", job.ID).Str("from", string(from)).Str("to", string(to)).Msg("job transition")
	if o.Recorder == nil {
		return
	}
	t := types.Transition{RunID: job.RunID, JobID: job.ID, From: from, To: to, At: o.Clock.Now(), Note: note}
	if err := o.Recorder.RecordTransition(context.WithoutCancel(ctx), t); err != nil {
		o.Logger.Warn().Err(err).Str("job", job.ID).Msg("recording transition")
	}
}

func (o *Orchestrator) save(ctx context.Context, job *types.Job) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.SaveJob(context.WithoutCancel(ctx), *job); err != nil {
		o.Logger.Warn().Err(err).Str("job", job.ID).Msg("saving job record")
	}
}

// pollBudget returns how many polls the backoff schedule fits into
// maxWait.
func pollBudget(initial, maxInterval, maxWait time.Duration) int {
	var n int
	var spent time.Duration
	for interval := initial; spent < maxWait; n++ {
		spent += interval
		if interval *= 2; interval > maxInterval {
			interval = maxInterval
		}
	}
	return n
}
