package server

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/twitter/jobgate/scheduler/domain"
)

func Test_RetryPolicy(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("a job is retried while it has used at most MaxRetries attempts", prop.ForAll(
		func(maxRetries, attempts int) bool {
			return RetryPolicy{MaxRetries: maxRetries}.ShouldRetry(attempts) == (attempts <= maxRetries)
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

// randomly finish the external jobs of active records
func finishSome(c *Controller, tr *fakeTransport, rng *rand.Rand) {
	c.mu.RLock()
	var active []string
	for _, r := range c.order {
		if r.state.IsActive() {
			active = append(active, r.id)
		}
	}
	c.mu.RUnlock()
	for _, id := range active {
		switch rng.Intn(4) {
		case 0:
			tr.finish(id, domain.Succeeded)
		case 1:
			tr.finish(id, domain.ExternalFailed)
		}
	}
}

func Test_ControllerInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("admission never exceeds the pool size and attempts never exceed max retries + 1", prop.ForAll(
		func(poolSize, maxRetries, numJobs int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			tr := newFakeTransport()
			c := makeController(t, testConfig(poolSize, maxRetries), tr, nil, nil)
			for i := 0; i < numJobs; i++ {
				tr.submitFails[jobName(i)] = rng.Intn(maxRetries + 2)
				addJobs(t, c, jobName(i))
			}

			for tick := 0; tick < 200 && !c.allTerminal(); tick++ {
				c.step()
				if activeCount(c) > poolSize {
					return false
				}
				for _, j := range c.Status().Jobs {
					if j.AttemptCount > maxRetries+1 {
						return false
					}
					if j.State == domain.Failed && j.AttemptCount != maxRetries+1 {
						return false
					}
				}
				finishSome(c, tr, rng)
			}
			return c.allTerminal()
		},
		gen.IntRange(1, 4),
		gen.IntRange(0, 3),
		gen.IntRange(1, 12),
		gen.Int64(),
	))

	properties.Property("resizes never preempt and only admit under the effective size", prop.ForAll(
		func(sizes []int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			tr := newFakeTransport()
			c := makeController(t, testConfig(3, 1), tr, nil, nil)
			for i := 0; i < 15; i++ {
				addJobs(t, c, jobName(i))
			}

			for _, size := range sizes {
				_ = c.Resize(size)
				before := len(tr.submitted())
				activeBefore := activeCount(c)
				c.step()
				poolSize, _ := c.GetPoolSize()
				admitted := len(tr.submitted()) > before
				if admitted && activeCount(c) > poolSize {
					return false
				}
				if !admitted && activeCount(c) > activeBefore {
					return false
				}
				if len(tr.cancelled()) > 0 {
					return false
				}
				finishSome(c, tr, rng)
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 6)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func jobName(i int) string {
	return "job_" + string(rune('a'+i))
}
