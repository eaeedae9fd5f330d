package monitor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm/model"
	"github.com/ChipCracker/slurm-tui/internal/pkg/common/timex"
	"github.com/ChipCracker/slurm-tui/internal/pkg/config"
)

// clusterClient is the slice of the slurm client the collector consumes.
type clusterClient interface {
	Jobs(ctx context.Context, f slurm.JobFilter) ([]model.Job, slurm.ParseStats, error)
	DiscoverPartitionGPUs(ctx context.Context) (map[string]int, error)
	Usage(ctx context.Context, start, end time.Time) ([]model.UsageRow, slurm.ParseStats, error)
	Username() string
}

// Collector derives one snapshot generation from the scheduler queries.
// It owns no state between calls; every Collect re-derives everything from
// fresh command output.
type Collector struct {
	client clusterClient
	cfg    *config.Config
	logger *slog.Logger
}

func NewCollector(client clusterClient, cfg *config.Config, logger *slog.Logger) *Collector {
	return &Collector{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// AllocatedGPUs sums the gpu count of every running job per partition over
// the capacity table. Partitions with no running jobs still emit a zero
// allocation row; jobs in unconfigured partitions are counted against a
// capacity of 0. Output is ordered by partition name.
func AllocatedGPUs(jobs []model.Job, capacities map[string]int) []PartitionGPU {
	alloc := make(map[string]int, len(capacities))
	for name := range capacities {
		alloc[name] = 0
	}
	for _, j := range jobs {
		if j.State != model.StateRunning {
			continue
		}
		alloc[j.Partition] += j.GPUs
	}

	out := make([]PartitionGPU, 0, len(alloc))
	for name, n := range alloc {
		out = append(out, PartitionGPU{
			Partition: name,
			Allocated: n,
			Total:     capacities[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return out
}

// RankUsage filters, orders and truncates raw usage rows into the top-N
// ranking. Excluded users and non-positive hours are dropped; ordering is
// hours descending with user ascending as the tie break, so identical
// input always yields identical output.
func RankUsage(rows []model.UsageRow, exclude map[string]struct{}, topN int) []RankedUsage {
	kept := make([]model.UsageRow, 0, len(rows))
	for _, r := range rows {
		if _, skip := exclude[r.User]; skip {
			continue
		}
		if r.Hours <= 0 {
			continue
		}
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Hours != kept[j].Hours {
			return kept[i].Hours > kept[j].Hours
		}
		return kept[i].User < kept[j].User
	})
	if topN > 0 && len(kept) > topN {
		kept = kept[:topN]
	}

	ranked := make([]RankedUsage, len(kept))
	for i, r := range kept {
		ranked[i] = RankedUsage{Rank: i + 1, UsageRow: r}
	}
	return ranked
}

// Capacities resolves the partition capacity table: a live gres probe
// merged over the configured static map, falling back to the static map
// alone when the probe fails or finds nothing.
func (c *Collector) Capacities(ctx context.Context) map[string]int {
	caps := make(map[string]int, len(c.cfg.Partitions))
	for name, n := range c.cfg.Partitions {
		caps[name] = n
	}

	discovered, err := c.client.DiscoverPartitionGPUs(ctx)
	if err != nil {
		c.logger.Warn("partition gpu discovery failed, using configured capacities", "err", err)
		return caps
	}
	for name, n := range discovered {
		if n > 0 {
			caps[name] = n
		}
	}
	return caps
}

// Collect runs one full refresh: job list, per-partition allocation and
// the usage ranking. Any sub-fetch failure fails the whole collection; the
// refresher keeps the previous generation in that case.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	filter := slurm.JobFilter{}
	if !c.cfg.AllUsers {
		filter.User = c.client.Username()
	}
	jobs, jobStats, err := c.client.Jobs(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Allocation counts every user's running jobs, independent of the job
	// list filter above.
	allocJobs, allocStats, err := c.client.Jobs(ctx, slurm.JobFilter{RunningOnly: true})
	if err != nil {
		return nil, err
	}

	start, end := c.cfg.ReportWindow(time.Now())
	usage, usageStats, err := c.client.Usage(ctx, start, end)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Generation:     uuid.NewString(),
		CollectedAt:    timex.Time(time.Now()),
		Jobs:           jobs,
		Partitions:     AllocatedGPUs(allocJobs, c.Capacities(ctx)),
		Usage:          RankUsage(usage, c.cfg.Excluded(), c.cfg.TopN),
		ParseAnomalies: jobStats.Skipped + allocStats.Skipped + usageStats.Skipped,
	}
	return snap, nil
}
