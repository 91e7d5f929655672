package slurm

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common/os/exec"
	"github.com/twitter/jobgate/common/stats"
	"github.com/twitter/jobgate/scheduler/domain"
)

// One row per node and partition: partition, availability, node state, node, cpus, memory MB,
// configured gres, allocated gres.
const sinfoFormat = "%P|%a|%T|%N|%c|%m|%G|%b"

// ResourceProvider builds cluster snapshots from sinfo.
type ResourceProvider struct {
	cmd *commander
	now func() time.Time
}

// NewResourceProvider returns a ResourceProvider using ex to run sinfo, the real one if ex is nil.
func NewResourceProvider(config Config, ex exec.OsExec, stat stats.StatsReceiver) *ResourceProvider {
	return &ResourceProvider{cmd: newCommander(config, ex, stat), now: time.Now}
}

// Query runs sinfo and summarizes every partition it lists.
func (r *ResourceProvider) Query(ctx context.Context) (*domain.ClusterSnapshot, error) {
	rr, err := r.cmd.run(ctx, "", r.cmd.config.SinfoPath, "-h", "-N", "-o", sinfoFormat)
	if err != nil {
		return nil, err
	}
	partitions, err := parseSinfo(string(rr.Stdout))
	if err != nil {
		return nil, err
	}
	r.cmd.stat.Counter(stats.SlurmSnapshotRefreshCounter).Inc(1)
	log.WithFields(
		log.Fields{
			"partitions": len(partitions),
		}).Debug("refreshed cluster snapshot")
	return domain.NewClusterSnapshot(r.now(), partitions...), nil
}

func parseSinfo(out string) ([]domain.PartitionResources, error) {
	byName := map[string]*domain.PartitionResources{}
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		f := strings.Split(line, "|")
		if len(f) != 8 {
			return nil, errors.Errorf("sinfo line %d: expected 8 fields, got %q", i+1, line)
		}
		name := strings.TrimSuffix(f[0], "*")
		cpus, err := strconv.Atoi(strings.TrimSuffix(f[4], "+"))
		if err != nil {
			return nil, errors.Wrapf(err, "sinfo line %d: cpus", i+1)
		}
		mem, err := strconv.ParseInt(strings.TrimSuffix(f[5], "+"), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "sinfo line %d: memory", i+1)
		}
		gpus := parseGPUs(f[6])

		p, ok := byName[name]
		if !ok {
			p = &domain.PartitionResources{Name: name}
			byName[name] = p
		}
		p.TotalNodes++
		p.TotalGPUs += gpus
		if f[1] == "up" && nodeAvailable(f[2]) {
			p.AvailableNodes++
			// mixed nodes already run jobs that hold some of their gpus
			if free := gpus - parseGPUs(f[7]); free > 0 {
				p.AvailableGPUs += free
			}
		}
		if cpus > p.MaxNodeCPUs {
			p.MaxNodeCPUs = cpus
		}
		if gpus > p.MaxNodeGPUs {
			p.MaxNodeGPUs = gpus
		}
		if mem > p.MaxNodeMemoryMB {
			p.MaxNodeMemoryMB = mem
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	partitions := make([]domain.PartitionResources, 0, len(names))
	for _, name := range names {
		partitions = append(partitions, *byName[name])
	}
	return partitions, nil
}

// nodeAvailable is true for nodes that can take new work. State suffixes like "*" or "~" mark
// unresponsive or powered down nodes.
func nodeAvailable(state string) bool {
	switch state {
	case "idle", "mixed", "mix":
		return true
	}
	return false
}

// parseGPUs sums the gpu entries of a GRES string such as "gpu:a100:4(S:0-1),gpu:2".
func parseGPUs(gres string) int {
	total := 0
	for _, entry := range strings.Split(gres, ",") {
		if i := strings.Index(entry, "("); i >= 0 {
			entry = entry[:i]
		}
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] != "gpu" {
			continue
		}
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			total += n
		}
	}
	return total
}
