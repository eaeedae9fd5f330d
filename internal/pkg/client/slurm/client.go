package slurm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ChipCracker/slurm-tui/internal/pkg/client/exec"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm/model"
)

// CommandRunner abstracts the exec runner so tests can substitute canned
// command output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (exec.Result, error)
}

// Client wraps the scheduler command line tools. Every call is
// independently best-effort; the client never assumes two invocations see
// a consistent cluster.
type Client struct {
	runner   CommandRunner
	logger   *slog.Logger
	username string
}

func New(runner CommandRunner, logger *slog.Logger) *Client {
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "unknown"
	}
	return &Client{
		runner:   runner,
		logger:   logger,
		username: username,
	}
}

func (c *Client) Username() string { return c.username }

// jobFormat: JobID|Name|State|Partition|GRES|NumCPUs|MinMemory|TimeUsed|NodeList|User
const jobFormat = "%i|%j|%t|%P|%b|%C|%m|%M|%N|%u"

// jobSchema tolerates output without the trailing user column.
var jobSchema = Schema{Delimiter: "|", MinFields: 9}

// JobFilter narrows the job list query. Zero value lists every job of
// every user.
type JobFilter struct {
	User        string // -u; ignored when empty
	Partition   string // -p; ignored when empty
	JobID       string // -j; ignored when empty
	RunningOnly bool   // -t R
}

// Jobs queries the job list. Rows that do not carry the minimum column
// count are skipped and reported in ParseStats.
func (c *Client) Jobs(ctx context.Context, f JobFilter) ([]model.Job, ParseStats, error) {
	args := []string{"-h", "-o", jobFormat}
	if f.User != "" {
		args = append(args, "-u", f.User)
	}
	if f.Partition != "" {
		args = append(args, "-p", f.Partition)
	}
	if f.JobID != "" {
		args = append(args, "-j", f.JobID)
	}
	if f.RunningOnly {
		args = append(args, "-t", "R")
	}

	res, err := c.runner.Run(ctx, "squeue", args...)
	if err != nil {
		return nil, ParseStats{}, err
	}
	if res.ExitCode != 0 {
		return nil, ParseStats{}, fmt.Errorf("squeue exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	jobs := make([]model.Job, 0)
	stats := forEachRow(res.Stdout, jobSchema, func(fields []string) {
		state := model.NormalizeState(fields[2])
		runtime := fields[7]
		if runtime == "" || state == model.StatePending {
			runtime = "unset"
		}
		job := model.Job{
			ID:        fields[0],
			Name:      fields[1],
			State:     state,
			RawState:  fields[2],
			Partition: fields[3],
			GPUs:      SumGres(fields[4]),
			CPUs:      atoi(fields[5]),
			Memory:    fields[6],
			Runtime:   runtime,
			Node:      fields[8],
		}
		if len(fields) > 9 {
			job.User = fields[9]
		}
		jobs = append(jobs, job)
	})
	if stats.Skipped > 0 {
		c.logger.Warn("squeue rows skipped", "skipped", stats.Skipped, "lines", stats.Lines)
	}
	return jobs, stats, nil
}

// Job fetches the current record of a single job. Returns nil when the job
// no longer appears in the queue.
func (c *Client) Job(ctx context.Context, id string) (*model.Job, error) {
	jobs, _, err := c.Jobs(ctx, JobFilter{JobID: id})
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i], nil
		}
	}
	return nil, nil
}

// partitionSchema: Name|State|TotalNodes|AllocNodes/IdleNodes|CPU states A/I/O/T
var partitionSchema = Schema{Delimiter: "|", MinFields: 5}

// Partitions queries partition info.
func (c *Client) Partitions(ctx context.Context) ([]model.Partition, ParseStats, error) {
	res, err := c.runner.Run(ctx, "sinfo", "-h", "-o", "%P|%a|%D|%A|%C")
	if err != nil {
		return nil, ParseStats{}, err
	}
	if res.ExitCode != 0 {
		return nil, ParseStats{}, fmt.Errorf("sinfo exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	parts := make([]model.Partition, 0)
	stats := forEachRow(res.Stdout, partitionSchema, func(fields []string) {
		p := model.Partition{
			Name:  strings.TrimSuffix(fields[0], "*"),
			State: fields[1],
		}
		// Node field: "allocated/idle"
		if np := strings.Split(fields[3], "/"); len(np) >= 2 {
			p.AvailNodes = atoi(np[1])
			p.TotalNodes = atoi(np[0]) + atoi(np[1])
		}
		// CPU field: "allocated/idle/other/total"
		if cp := strings.Split(fields[4], "/"); len(cp) >= 4 {
			p.AvailCPUs = atoi(cp[1])
			p.TotalCPUs = atoi(cp[3])
		}
		parts = append(parts, p)
	})
	return parts, stats, nil
}

// DiscoverPartitionGPUs probes partition gres lines for total gpu counts.
// Partitions without gpus are omitted. Best effort: callers fall back to a
// configured capacity table on error or empty result.
func (c *Client) DiscoverPartitionGPUs(ctx context.Context) (map[string]int, error) {
	res, err := c.runner.Run(ctx, "sinfo", "-h", "-o", "%P|%G")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("sinfo exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	gpus := make(map[string]int)
	forEachRow(res.Stdout, Schema{Delimiter: "|", MinFields: 2}, func(fields []string) {
		gres := fields[1]
		if gres == "(null)" {
			return
		}
		if n := SumGres(gres); n > 0 {
			gpus[strings.TrimSuffix(fields[0], "*")] += n
		}
	})
	return gpus, nil
}

// usageSchema: Cluster|Account|Login|Proper Name|TRES|Used|...
var usageSchema = Schema{Delimiter: "|", MinFields: 6}

// Usage queries the historical usage report, grouped by user and account,
// bounded by [start, end]. Hours are reported per the scheduler's own
// rounding.
func (c *Client) Usage(ctx context.Context, start, end time.Time) ([]model.UsageRow, ParseStats, error) {
	res, err := c.runner.Run(ctx, "sreport",
		"-n", "-P", "-t", "Hours", "-T", "gres/gpu",
		"cluster", "AccountUtilizationByUser",
		fmt.Sprintf("start=%s", start.Format("2006-01-02")),
		fmt.Sprintf("end=%s", end.Format("2006-01-02")),
	)
	if err != nil {
		return nil, ParseStats{}, err
	}
	if res.ExitCode != 0 {
		return nil, ParseStats{}, fmt.Errorf("sreport exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	rows := make([]model.UsageRow, 0)
	stats := forEachRow(res.Stdout, usageSchema, func(fields []string) {
		user := fields[2]
		if user == "" {
			// Account roll-up row, not a user row.
			return
		}
		rows = append(rows, model.UsageRow{
			Cluster: fields[0],
			Account: fields[1],
			User:    user,
			Hours:   atof(fields[5]),
		})
	})
	return rows, stats, nil
}

// Cancel cancels a job by id.
func (c *Client) Cancel(ctx context.Context, id string) error {
	res, err := c.runner.Run(ctx, "scancel", id)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("scancel exited %d", res.ExitCode)
		}
		return fmt.Errorf("cancel %s: %s", id, msg)
	}
	return nil
}

var submittedRe = regexp.MustCompile(`Submitted batch job (\d+)`)

// Submit submits a batch script and returns the new job id.
func (c *Client) Submit(ctx context.Context, scriptPath string) (string, error) {
	res, err := c.runner.Run(ctx, "sbatch", scriptPath)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = fmt.Sprintf("sbatch exited %d", res.ExitCode)
		}
		return "", fmt.Errorf("submit %s: %s", scriptPath, msg)
	}
	if m := submittedRe.FindStringSubmatch(res.Stdout); m != nil {
		return m[1], nil
	}
	// Accepted but the id could not be read back; report what sbatch said.
	return strings.TrimSpace(res.Stdout), nil
}

// AttachCommand returns the argv that attaches a shell to a running job.
// The core never execs it; interactive I/O belongs to the caller.
func (c *Client) AttachCommand(id string) []string {
	return []string{"srun", fmt.Sprintf("--jobid=%s", id), "--overlap", "--pty", "/bin/bash", "-l"}
}

// SessionOptions configure an interactive session request.
type SessionOptions struct {
	Partition string
	GPUs      int
	CPUs      int
	MemPerCPU string
	QoS       string
}

// InteractiveCommand returns the argv that starts an interactive session.
func (c *Client) InteractiveCommand(o SessionOptions) []string {
	if o.QoS == "" {
		o.QoS = "interactive"
	}
	return []string{
		"srun",
		fmt.Sprintf("--qos=%s", o.QoS),
		fmt.Sprintf("--partition=%s", o.Partition),
		fmt.Sprintf("--gres=gpu:%d", o.GPUs),
		fmt.Sprintf("--cpus-per-task=%d", o.CPUs),
		fmt.Sprintf("--mem-per-cpu=%s", o.MemPerCPU),
		"--pty", "bash",
	}
}

// JobDetails fetches the scheduler's full key=value view of a job.
// Returns nil when the job is unknown.
func (c *Client) JobDetails(ctx context.Context, id string) (map[string]string, error) {
	res, err := c.runner.Run(ctx, "scontrol", "show", "job", id)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, nil
	}
	details := make(map[string]string)
	for _, item := range strings.Fields(res.Stdout) {
		if key, value, ok := strings.Cut(item, "="); ok {
			details[key] = value
		}
	}
	return details, nil
}

// JobLogPaths returns the stdout and stderr log paths of a job, empty when
// unknown.
func (c *Client) JobLogPaths(ctx context.Context, id string) (string, string, error) {
	details, err := c.JobDetails(ctx, id)
	if err != nil {
		return "", "", err
	}
	return details["StdOut"], details["StdErr"], nil
}

// Available probes whether the scheduler tools respond at all.
func (c *Client) Available(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, "squeue", "--version")
	return err == nil && res.ExitCode == 0
}
