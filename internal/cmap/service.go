// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cmap submits gene signatures to the Connectivity Map scoring
// service and drives each scoring job through its lifecycle: submission,
// status polling with backoff, and retrieval of the result archive.
package cmap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var (
	// ErrInvalidSignature reports a signature whose sets repeat a gene or
	// share one. No service call is made.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrTranslationExhausted reports a signature direction left empty
	// after identifier translation. No service call is made.
	ErrTranslationExhausted = errors.New("no genes left after identifier translation")

	// ErrSubmitRejected reports a submission the service refused or that
	// never reached it.
	ErrSubmitRejected = errors.New("submission rejected")

	// ErrJobFailed reports a job the service marked as failed.
	ErrJobFailed = errors.New("scoring job failed")

	// ErrJobTimeout reports a job still unfinished when the local polling
	// budget ran out. The remote job may still complete.
	ErrJobTimeout = errors.New("gave up waiting for scoring job")

	// ErrResultFetchFailed reports a completed job whose archive could not
	// be downloaded. Fetching may be retried without resubmitting.
	ErrResultFetchFailed = errors.New("result archive fetch failed")

	// ErrJobNotCompleted reports a fetch attempted before completion.
	ErrJobNotCompleted = errors.New("job has not completed")
)

// JobError is returned for every failure in a job's remote lifecycle.
type JobError struct {
	JobID  string
	Status types.JobStatus
	Err    error
}

func (e *JobError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("job (%s): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("job %s (%s): %v", e.JobID, e.Status, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// RejectedError is returned by a Service when the scoring service answers
// a submission with a non-success status.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%v: HTTP %d: %s", ErrSubmitRejected, e.StatusCode, e.Message)
}

func (e *RejectedError) Unwrap() error { return ErrSubmitRejected }

// StatusReport is one status poll result.
type StatusReport struct {
	Status types.RemoteStatus

	// DownloadURL is the archive location, set once the job completes.
	DownloadURL string
}

// Service is the remote scoring service.
type Service interface {
	// Submit queues a scoring job for the given Entrez identifiers and
	// returns the service's job identifier.
	Submit(ctx context.Context, up, down []string) (string, error)

	// Status reports the current state of a job.
	Status(ctx context.Context, jobID string) (StatusReport, error)

	// Fetch streams the archive at downloadURL into w.
	Fetch(ctx context.Context, downloadURL string, w io.Writer) error
}

// SymbolTranslator converts gene symbols to service identifiers.
type SymbolTranslator interface {
	Translate(ctx context.Context, symbols []string) (ids, unmapped []string, err error)
}

// Recorder persists job records and their transitions.
type Recorder interface {
	SaveJob(ctx context.Context, job types.Job) error
	RecordTransition(ctx context.Context, t types.Transition) error

	// LoadJob returns the stored record for a service job identifier.
	LoadJob(ctx context.Context, jobID string) (types.Job, bool, error)
}
