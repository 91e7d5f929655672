// Package server provides the job queue controller that admits jobs to an external batch scheduler
package server

//go:generate mockgen -source=scheduler.go -package=server -destination=transport_mock.go

import (
	"context"

	"github.com/twitter/jobgate/scheduler/domain"
)

// Transport submits, polls and cancels jobs on the external scheduler.
// Every call is bounded by ctx; implementations should return promptly once it is done.
type Transport interface {
	// Submit hands one attempt of a job to the external scheduler and returns its external id.
	// Failures should be returned as *domain.SubmitError.
	Submit(ctx context.Context, job domain.Job, attempt int) (string, error)

	// Poll reports the status of a submitted job. An error or domain.Unknown means
	// the status could not be determined and never changes the job's state.
	Poll(ctx context.Context, externalID string) (domain.ExternalStatus, error)

	// Cancel asks the external scheduler to cancel a job. Best effort.
	Cancel(ctx context.Context, externalID string) error
}

// ResourceProvider reports the cluster's current resources.
type ResourceProvider interface {
	Query(ctx context.Context) (*domain.ClusterSnapshot, error)
}

// Reporter receives read only status snapshots.
type Reporter interface {
	Emit(snapshot *domain.StatusSnapshot)
}

// Notifier is told about every job that reaches a terminal state.
type Notifier interface {
	JobFinished(status domain.JobStatus)
}

// JobController is the surface the binary, signal handlers and status endpoint use.
type JobController interface {
	AddJob(job domain.Job) error

	// Resize stages a new pool size, applied at the start of the next tick.
	Resize(poolSize int) error

	// CancelJobs cancels every non terminal job whose id matches one of the glob patterns.
	CancelJobs(patterns ...string) error

	// Drain stops admissions and waits for in flight jobs; Terminate force cancels them.
	Drain()
	Terminate()

	Status() *domain.StatusSnapshot

	// GetPoolSize returns the effective pool size and the staged one, 0 if none.
	GetPoolSize() (int, int)

	Run(ctx context.Context) error
	Done() <-chan struct{}
}
