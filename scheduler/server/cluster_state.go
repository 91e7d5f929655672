package server

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/scheduler/domain"
)

const snapshotKey = "cluster"

// clusterState hands the admission pass a resource snapshot.
// Snapshots are cached for ttl (every pass queries when ttl <= 0); an admission that
// reserves resources replaces the cached snapshot with the reduced copy until it expires.
// When a query fails or runs past callTimeout the last good snapshot is used; with none,
// admission is skipped.
//
// Only the controller loop uses a clusterState.
type clusterState struct {
	provider    ResourceProvider
	ttl         time.Duration
	callTimeout time.Duration
	cache       *cache.Cache
	lastGood    *domain.ClusterSnapshot
}

func newClusterState(provider ResourceProvider, ttl, callTimeout time.Duration) *clusterState {
	return &clusterState{
		provider:    provider,
		ttl:         ttl,
		callTimeout: callTimeout,
		cache:       cache.New(ttl, 2*ttl),
	}
}

// snapshot returns the snapshot for this admission pass.
// A nil snapshot with nil error means there is no provider and every job is feasible.
func (c *clusterState) snapshot(ctx context.Context) (*domain.ClusterSnapshot, error) {
	if c.provider == nil {
		return nil, nil
	}
	if c.ttl > 0 {
		if v, ok := c.cache.Get(snapshotKey); ok {
			return v.(*domain.ClusterSnapshot), nil
		}
	}
	snap, err := c.query(ctx)
	if err != nil {
		if c.lastGood != nil {
			log.WithFields(
				log.Fields{
					"err":     err,
					"takenAt": c.lastGood.TakenAt,
				}).Warn("resource query failed, using last good snapshot")
			return c.lastGood, nil
		}
		return nil, err
	}
	log.Debugf("new resource snapshot %s", spew.Sdump(snap))
	c.lastGood = snap
	if c.ttl > 0 {
		c.cache.Set(snapshotKey, snap, cache.DefaultExpiration)
	}
	return snap, nil
}

// query bounds one provider call by callTimeout. A provider that ignores ctx is abandoned.
func (c *clusterState) query(ctx context.Context) (*domain.ClusterSnapshot, error) {
	if c.callTimeout <= 0 {
		return c.provider.Query(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	type result struct {
		snap *domain.ClusterSnapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		snap, err := c.provider.Query(ctx)
		ch <- result{snap, err}
	}()
	select {
	case r := <-ch:
		return r.snap, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("resource query: %w", domain.ErrCallTimeout)
	}
}

// reserve takes spec's resources out of snap and keeps the result cached for the remaining ttl.
func (c *clusterState) reserve(snap *domain.ClusterSnapshot, spec domain.JobSpec) *domain.ClusterSnapshot {
	if snap == nil {
		return nil
	}
	reserved := snap.Reserve(spec)
	if c.ttl > 0 {
		if _, exp, ok := c.cache.GetWithExpiration(snapshotKey); ok {
			if remaining := time.Until(exp); remaining > 0 {
				c.cache.Set(snapshotKey, reserved, remaining)
			}
		}
	}
	return reserved
}
