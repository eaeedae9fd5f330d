package model

// State is the normalized job state. Scheduler codes that do not map onto
// one of the first three values collapse to StateOther; an unknown code is
// never an error.
type State string

const (
	StatePending    State = "PENDING"
	StateRunning    State = "RUNNING"
	StateCompleting State = "COMPLETING"
	StateOther      State = "OTHER"
)

// NormalizeState maps a squeue state code (compact or long form) onto a
// State. Derived from the slurm job state table; only the states the
// dashboard distinguishes keep their identity.
func NormalizeState(code string) State {
	switch code {
	case "PD", "PENDING":
		return StatePending
	case "R", "RUNNING":
		return StateRunning
	case "CG", "COMPLETING":
		return StateCompleting
	}
	return StateOther
}

// Job is one row of the job list query. Immutable once built; a refresh
// replaces the whole job set rather than patching rows.
type Job struct {
	ID        string `json:"id"`         // scheduler assigned, opaque
	Name      string `json:"name"`       // job name
	State     State  `json:"state"`      // normalized state
	RawState  string `json:"raw_state"`  // state code as reported
	Partition string `json:"partition"`  // partition name
	GPUs      int    `json:"gpus"`       // requested gpu count, summed over gres groups
	CPUs      int    `json:"cpus"`       // requested cpu count
	Memory    string `json:"memory"`     // requested memory, as reported
	Runtime   string `json:"runtime"`    // elapsed time; "unset" until running
	Node      string `json:"node"`       // assigned node, empty until scheduled
	User      string `json:"user"`       // submitting user
}
