// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrIllegalTransition is returned when a job status change is not an
// edge of the job state machine.
var ErrIllegalTransition = errors.New("illegal job status transition")

// JobStatus is the local lifecycle state of a scoring job.
//
//	SUBMITTING -> QUEUED | FAILED_SUBMIT
//	QUEUED     -> RUNNING | FAILED_SUBMIT
//	RUNNING    -> RUNNING | COMPLETED | FAILED
//
// COMPLETED, FAILED and FAILED_SUBMIT are terminal.
type JobStatus string

const (
	JobSubmitting   JobStatus = "SUBMITTING"
	JobQueued       JobStatus = "QUEUED"
	JobRunning      JobStatus = "RUNNING"
	JobCompleted    JobStatus = "COMPLETED"
	JobFailed       JobStatus = "FAILED"
	JobFailedSubmit JobStatus = "FAILED_SUBMIT"
)

// Valid reports whether s is a recognized status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobSubmitting, JobQueued, JobRunning, JobCompleted, JobFailed, JobFailedSubmit:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is a sink of the state machine.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobFailedSubmit
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobSubmitting:
		return next == JobQueued || next == JobFailedSubmit
	case JobQueued:
		return next == JobRunning || next == JobFailedSubmit
	case JobRunning:
		return next == JobRunning || next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// RemoteStatus is the status reported by the scoring service.
type RemoteStatus string

const (
	RemoteQueued    RemoteStatus = "queued"
	RemoteRunning   RemoteStatus = "running"
	RemoteCompleted RemoteStatus = "completed"
	RemoteFailed    RemoteStatus = "failed"
)

// Job is the local record of a remote scoring job.
type Job struct {
	// ID is the identifier assigned by the scoring service. It stays valid
	// as an external reference after the local record is discarded.
	ID string `json:"id" yaml:"id"`

	// RunID identifies the local workflow run that submitted the job.
	RunID string `json:"run_id" yaml:"run_id"`

	// Status is the current state machine state.
	Status JobStatus `json:"status" yaml:"status"`

	SubmittedAt  time.Time `json:"submitted_at" yaml:"submitted_at"`
	LastPolledAt time.Time `json:"last_polled_at,omitempty" yaml:"last_polled_at,omitempty"`

	// ResultURL is the archive location reported by the service once the
	// job completes.
	ResultURL string `json:"result_url,omitempty" yaml:"result_url,omitempty"`

	// ResultPath is the local path of the downloaded archive, set once the
	// archive has been fetched.
	ResultPath string `json:"result_path,omitempty" yaml:"result_path,omitempty"`

	// UpCount and DownCount are the sizes of the translated sets that were
	// actually submitted.
	UpCount   int `json:"up_count" yaml:"up_count"`
	DownCount int `json:"down_count" yaml:"down_count"`

	// LastError holds the most recent failure message, if any.
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Transition is one recorded status change of a job.
type Transition struct {
	RunID string    `json:"run_id" yaml:"run_id"`
	JobID string    `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	From  JobStatus `json:"from" yaml:"from"`
	To    JobStatus `json:"to" yaml:"to"`
	At    time.Time `json:"at" yaml:"at"`
	Note  string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// NewJob returns a record in the SUBMITTING state.
func NewJob(runID string, at time.Time) *Job {
	return &Job{RunID: runID, Status: JobSubmitting, SubmittedAt: at}
}

// Transition moves the job to next. Terminal states and edges missing
// from the state machine are rejected with ErrIllegalTransition.
func (j *Job) Transition(next JobStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, next)
	}
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

// Observe applies a polled remote status at time at and returns the
// transitions it caused, in order. A queued report while QUEUED changes
// nothing but the poll time. A completed report while QUEUED passes
// through RUNNING, and a failed report while QUEUED ends in FAILED_SUBMIT.
func (j *Job) Observe(remote RemoteStatus, at time.Time) ([]JobStatus, error) {
	if j.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: job %s already %s", ErrIllegalTransition, j.ID, j.Status)
	}
	j.LastPolledAt = at

	var path []JobStatus
	switch j.Status {
	case JobQueued:
		switch remote {
		case RemoteQueued:
		case RemoteRunning:
			path = []JobStatus{JobRunning}
		case RemoteCompleted:
			path = []JobStatus{JobRunning, JobCompleted}
		case RemoteFailed:
			path = []JobStatus{JobFailedSubmit}
		default:
			return nil, fmt.Errorf("unknown remote status %q", remote)
		}
	case JobRunning:
		switch remote {
		case RemoteQueued, RemoteRunning:
			path = []JobStatus{JobRunning}
		case RemoteCompleted:
			path = []JobStatus{JobCompleted}
		case RemoteFailed:
			path = []JobStatus{JobFailed}
		default:
			return nil, fmt.Errorf("unknown remote status %q", remote)
		}
	default:
		return nil, fmt.Errorf("%w: cannot poll a job in %s", ErrIllegalTransition, j.Status)
	}

	for _, next := range path {
		if err := j.Transition(next); err != nil {
			return nil, err
		}
	}
	return path, nil
}
