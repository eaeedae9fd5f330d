package action

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm/model"
)

// Kind is the requested job action.
type Kind string

const (
	Attach Kind = "attach"
	Cancel Kind = "cancel"
)

// Status tracks a pending action. Pending transitions to Executed or
// Aborted exactly once and never back.
type Status string

const (
	Pending  Status = "pending"
	Executed Status = "executed"
	Aborted  Status = "aborted"
)

// PendingAction is one in-flight user intent, returned to the caller so it
// can report what happened.
type PendingAction struct {
	JobID   string   `json:"job_id"`
	Kind    Kind     `json:"kind"`
	Status  Status   `json:"status"`
	Command []string `json:"command,omitempty"` // attach argv once executed
}

// SelectionError reports an unusable selector.
type SelectionError struct {
	Kind  SelectionErrorKind
	Input string
}

type SelectionErrorKind int

const (
	Empty SelectionErrorKind = iota
	OutOfRange
)

func (e *SelectionError) Error() string {
	switch e.Kind {
	case Empty:
		return "empty selection"
	case OutOfRange:
		return fmt.Sprintf("selection %q is out of range", e.Input)
	}
	return fmt.Sprintf("invalid selection %q", e.Input)
}

// ActionError reports a validated selection that could not be acted on.
type ActionError struct {
	Kind  ActionErrorKind
	JobID string
}

type ActionErrorKind int

const (
	NotFound ActionErrorKind = iota
	NotRunning
)

func (e *ActionError) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("job %s no longer exists", e.JobID)
	case NotRunning:
		return fmt.Sprintf("job %s is not running", e.JobID)
	}
	return fmt.Sprintf("cannot act on job %s", e.JobID)
}

// Prompter asks the user for an explicit affirmative confirmation. The
// coordinator never performs interactive I/O itself.
type Prompter interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// jobClient is the slice of the slurm client the coordinator consumes.
type jobClient interface {
	Job(ctx context.Context, id string) (*model.Job, error)
	Cancel(ctx context.Context, id string) error
	AttachCommand(id string) []string
}

// Coordinator resolves a user's selection against the latest job list,
// re-validates that the job still exists and dispatches the action.
type Coordinator struct {
	client jobClient
	prompt Prompter
	logger *slog.Logger
}

func NewCoordinator(client jobClient, prompt Prompter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		prompt: prompt,
		logger: logger,
	}
}

// Resolve maps a selector onto a single job id. A selector matching a
// listed job id wins; a numeric selector is otherwise a 1-based ordinal
// into jobs. Anything else passes through as a literal id and is caught by
// re-validation.
func Resolve(jobs []model.Job, selector string) (string, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", &SelectionError{Kind: Empty}
	}
	for _, j := range jobs {
		if j.ID == selector {
			return j.ID, nil
		}
	}
	if n, err := strconv.Atoi(selector); err == nil {
		if n < 1 || n > len(jobs) {
			return "", &SelectionError{Kind: OutOfRange, Input: selector}
		}
		return jobs[n-1].ID, nil
	}
	return selector, nil
}

// revalidate fetches the job's current record; the job having finished or
// vanished between listing and action surfaces as NotFound.
func (c *Coordinator) revalidate(ctx context.Context, id string) (*model.Job, error) {
	job, err := c.client.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, &ActionError{Kind: NotFound, JobID: id}
	}
	return job, nil
}

// Cancel resolves, re-validates, confirms and cancels. A non-affirmative
// confirmation aborts with no side effects.
func (c *Coordinator) Cancel(ctx context.Context, jobs []model.Job, selector string) (*PendingAction, error) {
	id, err := Resolve(jobs, selector)
	if err != nil {
		return nil, err
	}
	pa := &PendingAction{JobID: id, Kind: Cancel, Status: Pending}

	job, err := c.revalidate(ctx, id)
	if err != nil {
		return nil, err
	}

	ok, err := c.prompt.Confirm(ctx, fmt.Sprintf("Cancel job %s (%s)?", job.ID, job.Name))
	if err != nil {
		return nil, err
	}
	if !ok {
		pa.Status = Aborted
		return pa, nil
	}

	if err := c.client.Cancel(ctx, id); err != nil {
		return nil, err
	}
	c.logger.Info("job cancelled", "job", id)
	pa.Status = Executed
	return pa, nil
}

// Attach resolves, re-validates, confirms and yields the attach argv. The
// job must be running; the caller execs the command outside the core.
func (c *Coordinator) Attach(ctx context.Context, jobs []model.Job, selector string) (*PendingAction, error) {
	id, err := Resolve(jobs, selector)
	if err != nil {
		return nil, err
	}
	pa := &PendingAction{JobID: id, Kind: Attach, Status: Pending}

	job, err := c.revalidate(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != model.StateRunning {
		return nil, &ActionError{Kind: NotRunning, JobID: id}
	}

	ok, err := c.prompt.Confirm(ctx, fmt.Sprintf("Attach to job %s (%s)?", job.ID, job.Name))
	if err != nil {
		return nil, err
	}
	if !ok {
		pa.Status = Aborted
		return pa, nil
	}

	pa.Status = Executed
	pa.Command = c.client.AttachCommand(id)
	return pa, nil
}
