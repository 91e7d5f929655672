package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/jobgate/scheduler/domain"
)

func newTestRecord() *jobRecord {
	return newJobRecord(domain.Job{ID: "a", Spec: domain.JobSpec{Script: "a.py"}.WithDefaults()}, 0)
}

func TestRecordLifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := RetryPolicy{MaxRetries: 1}
	r := newTestRecord()

	assert.Error(t, r.markRunning(now), "a queued job cannot start running")
	assert.NoError(t, r.markSubmitted("100", now))
	assert.Equal(t, 1, r.attemptCount)
	assert.NoError(t, r.markRunning(now.Add(time.Minute)))

	retried, err := r.markFailed(errors.New("node failure"), policy, now.Add(2*time.Minute))
	assert.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, domain.Queued, r.state)
	assert.Equal(t, "", r.externalID)
	assert.Equal(t, 1, r.attemptCount)

	assert.NoError(t, r.markSubmitted("101", now.Add(3*time.Minute)))
	assert.NoError(t, r.markRunning(now.Add(4*time.Minute)))
	assert.Equal(t, now, r.submittedAt, "set once")
	assert.Equal(t, now.Add(time.Minute), r.startedAt, "set once")

	assert.NoError(t, r.markCompleted(now.Add(time.Hour+time.Minute)))
	s := r.status(now.Add(5 * time.Hour))
	assert.Equal(t, domain.Completed, s.State)
	assert.Equal(t, 2, s.AttemptCount)
	assert.Equal(t, "1:00:00", s.Runtime)
	assert.Equal(t, "node failure", s.LastError)

	// terminal states never change
	assert.Error(t, r.markCompleted(now))
	_, err = r.markCancelled("", now)
	assert.Error(t, err)
	_, err = r.markFailed(errors.New("x"), policy, now)
	assert.Error(t, err)
}

func TestRecordRetriesExhausted(t *testing.T) {
	now := time.Now()
	policy := RetryPolicy{MaxRetries: 0}
	r := newTestRecord()

	assert.NoError(t, r.markSubmitted("100", now))
	retried, err := r.markFailed(errors.New("exit 1"), policy, now)
	assert.NoError(t, err)
	assert.False(t, retried)
	assert.Equal(t, domain.Failed, r.state)
	assert.Equal(t, "100", r.externalID)
	assert.False(t, r.finishedAt.IsZero())

	r = newTestRecord()
	assert.False(t, r.markSubmitFailed(errors.New("invalid partition"), policy, now))
	assert.Equal(t, domain.Failed, r.state)
	assert.Equal(t, 1, r.attemptCount)
}

func TestRecordCancel(t *testing.T) {
	now := time.Now()
	r := newTestRecord()
	extID, err := r.markCancelled("", now)
	assert.NoError(t, err)
	assert.Equal(t, "", extID)

	r = newTestRecord()
	_ = r.markSubmitted("100", now)
	extID, err = r.markCancelled("drain timeout", now)
	assert.NoError(t, err)
	assert.Equal(t, "100", extID)
	assert.Equal(t, "drain timeout", r.lastError)
}

func TestRecordPollFailureKeepsState(t *testing.T) {
	r := newTestRecord()
	_ = r.markSubmitted("100", time.Now())
	r.markPollFailed(&domain.PollTransientError{ExternalID: "100", Attempts: 3, Cause: errors.New("timeout")})
	assert.Equal(t, domain.Submitted, r.state)
	assert.Equal(t, 1, r.pollFailures)
	assert.Equal(t, 1, r.status(time.Now()).PollFailures)
	assert.Contains(t, r.lastError, "unknown after 3 attempts")
}
