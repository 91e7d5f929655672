// Package sim is an in-memory external scheduler. It implements the controller's Transport and
// ResourceProvider so jobgate can run without Slurm, for local use and tests.
//
// A submitted job is PENDING on its first poll, RUNNING for RunPolls polls, then COMPLETED, or
// FAILED if its id matches a FailAttempts pattern and the attempt is within the failing count.
package sim

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/scheduler/domain"
)

const DefaultRunPolls = 3

type Config struct {
	Partitions []domain.PartitionResources

	// Number of polls a job reports RUNNING before it finishes.
	RunPolls int

	// Job id glob pattern -> number of attempts that fail. Use -1 to fail every attempt.
	FailAttempts map[string]int

	// Partitions that refuse submissions, to exercise submit failures.
	RejectPartitions []string
}

// Cluster is the simulated scheduler. It is safe for concurrent use.
type Cluster struct {
	config Config
	now    func() time.Time

	mu     sync.Mutex
	nextID int
	jobs   map[string]*simJob
}

type simJob struct {
	job     domain.Job
	attempt int
	polls   int
	status  domain.ExternalStatus
}

func NewCluster(config Config) *Cluster {
	if config.RunPolls <= 0 {
		config.RunPolls = DefaultRunPolls
	}
	if len(config.Partitions) == 0 {
		config.Partitions = DefaultPartitions()
	}
	return &Cluster{config: config, now: time.Now, nextID: 1000, jobs: map[string]*simJob{}}
}

// Submit accepts the job unless its partition is rejected or unknown.
func (c *Cluster) Submit(ctx context.Context, job domain.Job, attempt int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.SubmitError{JobID: job.ID, Cause: err}
	}
	for _, p := range c.config.RejectPartitions {
		if p == job.Spec.Partition {
			return "", &domain.SubmitError{JobID: job.ID, Cause: fmt.Errorf("partition %s rejected submission", p)}
		}
	}
	if !c.hasPartition(job.Spec.Partition) {
		return "", &domain.SubmitError{JobID: job.ID, Cause: fmt.Errorf("invalid partition specified: %s", job.Spec.Partition)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := strconv.Itoa(c.nextID)
	c.jobs[id] = &simJob{job: job, attempt: attempt, status: domain.Pending}
	log.WithFields(
		log.Fields{
			"jobID":      job.ID,
			"attempt":    attempt,
			"externalID": id,
		}).Debug("sim submitted")
	return id, nil
}

// Poll advances the job one step and returns its status.
func (c *Cluster) Poll(ctx context.Context, externalID string) (domain.ExternalStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.Unknown, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[externalID]
	if !ok {
		return domain.Unknown, fmt.Errorf("invalid job id %s", externalID)
	}
	if j.status == domain.Succeeded || j.status == domain.ExternalFailed {
		return j.status, nil
	}
	j.polls++
	switch {
	case j.polls == 1:
		j.status = domain.Pending
	case j.polls <= c.config.RunPolls+1:
		j.status = domain.ExternalRunning
	case c.fails(j):
		j.status = domain.ExternalFailed
	default:
		j.status = domain.Succeeded
	}
	return j.status, nil
}

// Cancel marks the job failed, like a scancel'd Slurm job.
func (c *Cluster) Cancel(ctx context.Context, externalID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jobs[externalID]
	if !ok {
		return fmt.Errorf("invalid job id %s", externalID)
	}
	if j.status != domain.Succeeded {
		j.status = domain.ExternalFailed
	}
	return nil
}

// Query returns the configured partitions less the GPUs held by pending and running jobs.
// Node counts are not reduced, nodes are shared.
func (c *Cluster) Query(ctx context.Context) (*domain.ClusterSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make(map[string]domain.PartitionResources, len(c.config.Partitions))
	for _, p := range c.config.Partitions {
		parts[p.Name] = p
	}
	for _, j := range c.jobs {
		if j.status != domain.Pending && j.status != domain.ExternalRunning {
			continue
		}
		if p, ok := parts[j.job.Spec.Partition]; ok {
			p.AvailableGPUs -= j.job.Spec.GPUs
			if p.AvailableGPUs < 0 {
				p.AvailableGPUs = 0
			}
			parts[p.Name] = p
		}
	}
	list := make([]domain.PartitionResources, 0, len(parts))
	for _, p := range parts {
		list = append(list, p)
	}
	return domain.NewClusterSnapshot(c.now(), list...), nil
}

// Submitted returns how many submissions the cluster accepted.
func (c *Cluster) Submitted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func (c *Cluster) hasPartition(name string) bool {
	for _, p := range c.config.Partitions {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (c *Cluster) fails(j *simJob) bool {
	for pattern, n := range c.config.FailAttempts {
		if ok, _ := path.Match(pattern, j.job.ID); ok && (n < 0 || j.attempt <= n) {
			return true
		}
	}
	return false
}

// DefaultPartitions is a small two partition cluster.
func DefaultPartitions() []domain.PartitionResources {
	return []domain.PartitionResources{
		{Name: domain.DefaultPartition, TotalNodes: 4, AvailableNodes: 4, MaxNodeCPUs: 64, MaxNodeMemoryMB: 256 * 1024},
		{Name: "gpu", TotalNodes: 2, AvailableNodes: 2, TotalGPUs: 8, AvailableGPUs: 8,
			MaxNodeCPUs: 32, MaxNodeGPUs: 4, MaxNodeMemoryMB: 512 * 1024},
	}
}
