package domain

import (
	"fmt"
	"sort"
	"time"
)

// PartitionResources summarizes one partition of the external scheduler.
// Zero MaxNodeCPUs or MaxNodeMemoryMB mean the value is unknown and is not checked.
type PartitionResources struct {
	Name            string `json:"name"`
	TotalNodes      int    `json:"totalNodes"`
	AvailableNodes  int    `json:"availableNodes"`
	TotalGPUs       int    `json:"totalGpus"`
	AvailableGPUs   int    `json:"availableGpus"`
	MaxNodeCPUs     int    `json:"maxNodeCpus"`
	MaxNodeGPUs     int    `json:"maxNodeGpus"`
	MaxNodeMemoryMB int64  `json:"maxNodeMemoryMb"`
}

// ClusterSnapshot is a point in time view of the cluster's partitions.
// Snapshots are never mutated once built; Reserve returns a new one.
type ClusterSnapshot struct {
	Partitions map[string]PartitionResources `json:"partitions"`
	TakenAt    time.Time                     `json:"takenAt"`
}

// NewClusterSnapshot builds a snapshot from a list of partitions.
func NewClusterSnapshot(takenAt time.Time, partitions ...PartitionResources) *ClusterSnapshot {
	s := &ClusterSnapshot{Partitions: make(map[string]PartitionResources, len(partitions)), TakenAt: takenAt}
	for _, p := range partitions {
		s.Partitions[p.Name] = p
	}
	return s
}

// Feasible reports whether spec could start now given this snapshot, and if not, why.
func (s *ClusterSnapshot) Feasible(spec JobSpec) (bool, string) {
	p, ok := s.Partitions[spec.Partition]
	if !ok {
		return false, fmt.Sprintf("partition %s does not exist", spec.Partition)
	}
	if p.AvailableNodes <= 0 {
		return false, fmt.Sprintf("partition %s has no available nodes", spec.Partition)
	}
	if p.MaxNodeCPUs > 0 && spec.CPUs > p.MaxNodeCPUs {
		return false, fmt.Sprintf("no node has %d cpus (max %d)", spec.CPUs, p.MaxNodeCPUs)
	}
	if spec.GPUs > 0 {
		if spec.GPUs > p.MaxNodeGPUs {
			return false, fmt.Sprintf("no node has %d gpus (max %d)", spec.GPUs, p.MaxNodeGPUs)
		}
		if spec.GPUs > p.AvailableGPUs {
			return false, fmt.Sprintf("not enough available gpus (need %d, available %d)", spec.GPUs, p.AvailableGPUs)
		}
	}
	if p.MaxNodeMemoryMB > 0 {
		mem, err := ParseMemoryMB(spec.Memory)
		if err != nil {
			return false, err.Error()
		}
		if mem > p.MaxNodeMemoryMB {
			return false, fmt.Sprintf("no node has %s memory (max %dM)", spec.Memory, p.MaxNodeMemoryMB)
		}
	}
	return true, ""
}

// Reserve returns a copy of the snapshot with spec's GPUs taken from its partition.
func (s *ClusterSnapshot) Reserve(spec JobSpec) *ClusterSnapshot {
	out := &ClusterSnapshot{Partitions: make(map[string]PartitionResources, len(s.Partitions)), TakenAt: s.TakenAt}
	for name, p := range s.Partitions {
		out.Partitions[name] = p
	}
	if p, ok := out.Partitions[spec.Partition]; ok && spec.GPUs > 0 {
		p.AvailableGPUs -= spec.GPUs
		if p.AvailableGPUs < 0 {
			p.AvailableGPUs = 0
		}
		out.Partitions[spec.Partition] = p
	}
	return out
}

// PartitionNames returns the partition names in sorted order.
func (s *ClusterSnapshot) PartitionNames() []string {
	names := make([]string, 0, len(s.Partitions))
	for name := range s.Partitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
