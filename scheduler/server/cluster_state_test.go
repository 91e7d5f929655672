package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/jobgate/scheduler/domain"
)

type staticProvider struct {
	mu    sync.Mutex
	snap  *domain.ClusterSnapshot
	err   error
	count int
}

func (p *staticProvider) Query(ctx context.Context) (*domain.ClusterSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return p.snap, p.err
}

func (p *staticProvider) set(snap *domain.ClusterSnapshot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap, p.err = snap, err
}

func (p *staticProvider) queries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// blockingProvider ignores ctx and only answers once release is closed, like a hung sinfo.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) Query(ctx context.Context) (*domain.ClusterSnapshot, error) {
	<-p.release
	return nil, errors.New("sinfo: released")
}

func gpuSnapshot(available int) *domain.ClusterSnapshot {
	return domain.NewClusterSnapshot(testStart, domain.PartitionResources{
		Name: "gpu", TotalNodes: 1, AvailableNodes: 1, TotalGPUs: 4, AvailableGPUs: available, MaxNodeGPUs: 4,
	})
}

func TestClusterStateNoProvider(t *testing.T) {
	cs := newClusterState(nil, time.Minute, time.Second)
	snap, err := cs.snapshot(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.Nil(t, cs.reserve(snap, domain.JobSpec{GPUs: 1}))
}

func TestClusterStateCaches(t *testing.T) {
	p := &staticProvider{snap: gpuSnapshot(4)}
	cs := newClusterState(p, time.Minute, time.Second)

	snap, err := cs.snapshot(context.Background())
	assert.NoError(t, err)
	reserved := cs.reserve(snap, domain.JobSpec{Partition: "gpu", GPUs: 3})
	assert.Equal(t, 1, reserved.Partitions["gpu"].AvailableGPUs)
	assert.Equal(t, 4, snap.Partitions["gpu"].AvailableGPUs, "snapshots are never changed in place")

	// the reduced snapshot is what the next pass sees
	again, err := cs.snapshot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, again.Partitions["gpu"].AvailableGPUs)
	assert.Equal(t, 1, p.queries())
}

func TestClusterStateNoCache(t *testing.T) {
	p := &staticProvider{snap: gpuSnapshot(4)}
	cs := newClusterState(p, 0, time.Second)

	snap, _ := cs.snapshot(context.Background())
	cs.reserve(snap, domain.JobSpec{Partition: "gpu", GPUs: 3})
	again, _ := cs.snapshot(context.Background())
	assert.Equal(t, 4, again.Partitions["gpu"].AvailableGPUs)
	assert.Equal(t, 2, p.queries())
}

func TestClusterStateFallsBackToLastGood(t *testing.T) {
	p := &staticProvider{err: errors.New("sinfo: error: slurm_load_partitions: Unable to contact slurm controller")}
	cs := newClusterState(p, 0, time.Second)

	_, err := cs.snapshot(context.Background())
	assert.Error(t, err)

	p.set(gpuSnapshot(2), nil)
	snap, err := cs.snapshot(context.Background())
	assert.NoError(t, err)

	p.set(nil, errors.New("timeout"))
	fallback, err := cs.snapshot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, snap, fallback)
}

func TestClusterStateQueryTimeout(t *testing.T) {
	p := &blockingProvider{release: make(chan struct{})}
	defer close(p.release)
	cs := newClusterState(p, 0, 50*time.Millisecond)

	start := time.Now()
	_, err := cs.snapshot(context.Background())
	assert.True(t, errors.Is(err, domain.ErrCallTimeout), "%v", err)
	assert.True(t, time.Since(start) < time.Second)

	// a timed out query falls back like any other failure
	cs.lastGood = gpuSnapshot(2)
	snap, err := cs.snapshot(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, snap.Partitions["gpu"].AvailableGPUs)
}
