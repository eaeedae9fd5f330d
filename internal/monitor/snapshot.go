package monitor

import (
	"encoding/json"

	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm/model"
	"github.com/ChipCracker/slurm-tui/internal/pkg/common/timex"
)

// PartitionGPU is the per-partition allocation view of one refresh cycle.
type PartitionGPU struct {
	Partition string `json:"partition"`
	Allocated int    `json:"allocated"`
	Total     int    `json:"total"`
}

// Utilization returns allocated/total in [0,1]; 0 when the partition has
// no configured or discovered capacity.
func (p PartitionGPU) Utilization() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Allocated) / float64(p.Total)
}

// MarshalJSON adds the derived utilization fraction to the wire form so
// consumers need not re-derive it.
func (p PartitionGPU) MarshalJSON() ([]byte, error) {
	type alias PartitionGPU
	return json.Marshal(struct {
		alias
		Utilization float64 `json:"utilization"`
	}{alias(p), p.Utilization()})
}

// RankedUsage is one row of the gpu-hours ranking, 1-based.
type RankedUsage struct {
	Rank int `json:"rank"`
	model.UsageRow
}

// Snapshot is one immutable, internally consistent view of cluster state.
// A refresh replaces the previous generation wholesale; consumers must not
// mutate a published snapshot.
type Snapshot struct {
	Generation     string         `json:"generation"`
	CollectedAt    timex.Time     `json:"collected_at"`
	Jobs           []model.Job    `json:"jobs"`
	Partitions     []PartitionGPU `json:"partitions"`
	Usage          []RankedUsage  `json:"usage"`
	ParseAnomalies int            `json:"parse_anomalies"`

	// Stale marks a snapshot whose data survived a failed refresh; Err
	// carries the reason. Stale data is display-worthy, never cleared on a
	// transient failure.
	Stale bool   `json:"stale"`
	Err   string `json:"error,omitempty"`
}

// markedStale returns a shallow copy flagged stale with the given reason.
// The underlying slices stay shared; snapshots are read-only after publish.
func (s *Snapshot) markedStale(reason string) *Snapshot {
	cp := *s
	cp.Stale = true
	cp.Err = reason
	return &cp
}
