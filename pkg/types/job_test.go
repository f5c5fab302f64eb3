// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []JobStatus{JobSubmitting, JobQueued, JobRunning, JobCompleted, JobFailed, JobFailedSubmit}

func TestCanTransitionTo(t *testing.T) {
	allowed := map[JobStatus][]JobStatus{
		JobSubmitting: {JobQueued, JobFailedSubmit},
		JobQueued:     {JobRunning, JobFailedSubmit},
		JobRunning:    {JobRunning, JobCompleted, JobFailed},
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, s := range []JobStatus{JobCompleted, JobFailed, JobFailedSubmit} {
		assert.True(t, s.IsTerminal())
		for _, next := range allStatuses {
			j := &Job{ID: "j", Status: s}
			assert.ErrorIs(t, j.Transition(next), ErrIllegalTransition)
			assert.Equal(t, s, j.Status)
		}
		j := &Job{ID: "j", Status: s}
		_, err := j.Observe(RemoteRunning, time.Now())
		assert.ErrorIs(t, err, ErrIllegalTransition)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	j := NewJob("run", time.Now())
	assert.ErrorIs(t, j.Transition("LOST"), ErrIllegalTransition)
	assert.Equal(t, JobSubmitting, j.Status)
	assert.False(t, JobStatus("LOST").Valid())
}

func TestObserve(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		from   JobStatus
		remote RemoteStatus
		path   []JobStatus
		final  JobStatus
	}{
		{"queued stays queued", JobQueued, RemoteQueued, nil, JobQueued},
		{"queued to running", JobQueued, RemoteRunning, []JobStatus{JobRunning}, JobRunning},
		{"queued completes through running", JobQueued, RemoteCompleted, []JobStatus{JobRunning, JobCompleted}, JobCompleted},
		{"queued failure is a submit failure", JobQueued, RemoteFailed, []JobStatus{JobFailedSubmit}, JobFailedSubmit},
		{"running stays running", JobRunning, RemoteRunning, []JobStatus{JobRunning}, JobRunning},
		{"running reported queued", JobRunning, RemoteQueued, []JobStatus{JobRunning}, JobRunning},
		{"running completes", JobRunning, RemoteCompleted, []JobStatus{JobCompleted}, JobCompleted},
		{"running fails", JobRunning, RemoteFailed, []JobStatus{JobFailed}, JobFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Job{ID: "j", Status: tt.from}
			path, err := j.Observe(tt.remote, at)
			require.NoError(t, err)
			assert.Equal(t, tt.path, path)
			assert.Equal(t, tt.final, j.Status)
			assert.Equal(t, at, j.LastPolledAt)
		})
	}
}

func TestObserve_NotPollable(t *testing.T) {
	j := NewJob("run", time.Now())
	_, err := j.Observe(RemoteRunning, time.Now())
	assert.ErrorIs(t, err, ErrIllegalTransition)

	j = &Job{Status: JobRunning}
	_, err = j.Observe("exploded", time.Now())
	assert.Error(t, err)
	assert.Equal(t, JobRunning, j.Status)
}
