package server

import (
	"fmt"
	"time"

	"github.com/twitter/jobgate/scheduler/domain"
)

// The allowed state changes. Terminal states have no entry and never change.
var validTransitions = map[domain.JobState][]domain.JobState{
	domain.Queued:    {domain.Submitted, domain.Failed, domain.Cancelled},
	domain.Submitted: {domain.Running, domain.Completed, domain.Failed, domain.Queued, domain.Cancelled},
	domain.Running:   {domain.Completed, domain.Failed, domain.Queued, domain.Cancelled},
}

// Contains all the information the controller tracks for a job.
// Records are only mutated by the controller loop, or by AddJob when inserting them, under the controller lock.
type jobRecord struct {
	id   string
	spec domain.JobSpec
	seq  int64 // enqueue order

	state        domain.JobState
	externalID   string
	attemptCount int
	submittedAt  time.Time
	startedAt    time.Time
	finishedAt   time.Time
	lastError    string

	// consecutive polls that could not determine the status
	pollFailures int
}

func newJobRecord(job domain.Job, seq int64) *jobRecord {
	return &jobRecord{id: job.ID, spec: job.Spec, seq: seq, state: domain.Queued}
}

func (r *jobRecord) String() string {
	return fmt.Sprintf("job %s (%s, externalID:%q, attempts:%d)", r.id, r.state, r.externalID, r.attemptCount)
}

func (r *jobRecord) transition(to domain.JobState) error {
	for _, s := range validTransitions[r.state] {
		if s == to {
			r.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition %s -> %s for job %s", r.state, to, r.id)
}

// markSubmitted records a successful submission.
func (r *jobRecord) markSubmitted(externalID string, now time.Time) error {
	if err := r.transition(domain.Submitted); err != nil {
		return err
	}
	r.externalID = externalID
	r.attemptCount++
	r.pollFailures = 0
	if r.submittedAt.IsZero() {
		r.submittedAt = now
	}
	return nil
}

// markSubmitFailed counts a failed submission as an attempt. The job stays
// QUEUED when the policy allows another attempt, otherwise it is FAILED.
func (r *jobRecord) markSubmitFailed(err error, policy RetryPolicy, now time.Time) (retried bool) {
	r.attemptCount++
	r.lastError = err.Error()
	if policy.ShouldRetry(r.attemptCount) {
		return true
	}
	r.state = domain.Failed
	r.finishedAt = now
	return false
}

func (r *jobRecord) markRunning(now time.Time) error {
	if err := r.transition(domain.Running); err != nil {
		return err
	}
	if r.startedAt.IsZero() {
		r.startedAt = now
	}
	return nil
}

func (r *jobRecord) markCompleted(now time.Time) error {
	if err := r.transition(domain.Completed); err != nil {
		return err
	}
	r.finishedAt = now
	return nil
}

// markFailed applies a failure reported by the external scheduler. The job is
// requeued, keeping its attempt count, when the policy allows another attempt.
func (r *jobRecord) markFailed(cause error, policy RetryPolicy, now time.Time) (retried bool, err error) {
	if r.state != domain.Submitted && r.state != domain.Running {
		return false, fmt.Errorf("invalid transition %s -> %s for job %s", r.state, domain.Failed, r.id)
	}
	r.lastError = cause.Error()
	if policy.ShouldRetry(r.attemptCount) {
		r.state = domain.Queued
		r.externalID = ""
		return true, nil
	}
	r.state = domain.Failed
	r.finishedAt = now
	return false, nil
}

// markCancelled moves any non terminal job to CANCELLED, returning the external id to forward the cancel to.
func (r *jobRecord) markCancelled(reason string, now time.Time) (externalID string, err error) {
	if err := r.transition(domain.Cancelled); err != nil {
		return "", err
	}
	if reason != "" {
		r.lastError = reason
	}
	r.finishedAt = now
	return r.externalID, nil
}

// markPollFailed leaves the state alone and records why the status is unknown.
func (r *jobRecord) markPollFailed(err error) {
	r.pollFailures++
	r.lastError = err.Error()
}

func (r *jobRecord) status(now time.Time) domain.JobStatus {
	return domain.JobStatus{
		ID:           r.id,
		Spec:         r.spec,
		State:        r.state,
		ExternalID:   r.externalID,
		AttemptCount: r.attemptCount,
		SubmittedAt:  r.submittedAt,
		StartedAt:    r.startedAt,
		FinishedAt:   r.finishedAt,
		LastError:    r.lastError,
		Runtime:      domain.FormatRuntime(domain.Runtime(r.startedAt, r.finishedAt, now), !r.startedAt.IsZero()),
		PollFailures: r.pollFailures,
	}
}
