package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Kind classifies a failed mutation.
type Kind int

const (
	ConflictingDirectives Kind = iota
	ReadFailed
	WriteFailed
)

func (k Kind) String() string {
	switch k {
	case ConflictingDirectives:
		return "conflicting directives"
	case ReadFailed:
		return "read failed"
	case WriteFailed:
		return "write failed"
	}
	return "unknown"
}

// MutationError reports an aborted edit. The target file is guaranteed
// untouched whenever one is returned.
type MutationError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutate %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Request names the directive values to impose on a script. Zero fields
// are left untouched.
type Request struct {
	Partition string
	QoS       string
	GPUs      *int   // gres rewrite; also realigns launcher flags in the body
	CPUs      *int   // cpus-per-task
	Memory    string // applied to whichever memory directive the script uses
	JobName   string // job-name
}

var gresTypedRe = regexp.MustCompile(`^gpu:([^:,\s]+):(\d+)$`)

// gresValue computes the new gres value, preserving an existing device
// type and replacing only the trailing count; without a type the bare form
// is written.
func gresValue(existing string, gpus int) string {
	if m := gresTypedRe.FindStringSubmatch(existing); m != nil {
		return fmt.Sprintf("gpu:%s:%d", m[1], gpus)
	}
	return fmt.Sprintf("gpu:%d", gpus)
}

// step is one (key, value) edit of the fold.
type step struct {
	key   string
	value string
}

// buildSteps resolves a request against the script's current block into
// the ordered edit list. Detecting which memory mode the script uses
// happens here; a script carrying both modes is rejected before any edit
// applies.
func buildSteps(ds *DirectiveSet, req Request, path string) ([]step, error) {
	var steps []step
	if req.JobName != "" {
		steps = append(steps, step{"job-name", req.JobName})
	}
	if req.Partition != "" {
		steps = append(steps, step{"partition", req.Partition})
	}
	if req.QoS != "" {
		steps = append(steps, step{"qos", req.QoS})
	}
	if req.GPUs != nil {
		steps = append(steps, step{"gres", gresValue(ds.Value("gres"), *req.GPUs)})
	}
	if req.CPUs != nil {
		steps = append(steps, step{"cpus-per-task", strconv.Itoa(*req.CPUs)})
	}
	if req.Memory != "" {
		hasMem, hasPerCPU := ds.Has("mem"), ds.Has("mem-per-cpu")
		switch {
		case hasMem && hasPerCPU:
			return nil, &MutationError{
				Kind: ConflictingDirectives,
				Path: path,
				Err:  fmt.Errorf("script sets both mem and mem-per-cpu"),
			}
		case hasMem:
			steps = append(steps, step{"mem", req.Memory})
		default:
			steps = append(steps, step{"mem-per-cpu", req.Memory})
		}
	}
	return steps, nil
}

// Engine edits submission scripts in place. Not safe for concurrent edits
// of the same path; callers serialize per file.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger, now: time.Now}
}

// Apply folds the requested edits over the script's directive block and
// materializes the result once: temp file, timestamped backup of the
// original, then rename. An edit that changes nothing writes nothing.
// Returns whether the file changed and the backup path when it did.
func (e *Engine) Apply(path string, req Request) (bool, string, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return false, "", &MutationError{Kind: ReadFailed, Path: path, Err: err}
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, "", &MutationError{Kind: ReadFailed, Path: path, Err: err}
	}

	ds := Parse(string(original))
	steps, err := buildSteps(ds, req, path)
	if err != nil {
		return false, "", err
	}
	for _, st := range steps {
		ds.set(st.key, st.value)
	}
	if req.GPUs != nil {
		ds.rewriteLauncherFlags(*req.GPUs)
	}

	out := ds.Render()
	if out == string(original) {
		e.logger.Debug("script already satisfies request", "path", path)
		return false, "", nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}
	tmpName := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.WriteString(out); err != nil {
		discard()
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		discard()
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		discard()
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}

	backup := fmt.Sprintf("%s.bak.%s", path, e.now().Format("20060102-150405"))
	if err := os.WriteFile(backup, original, info.Mode().Perm()); err != nil {
		discard()
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		os.Remove(backup)
		return false, "", &MutationError{Kind: WriteFailed, Path: path, Err: err}
	}

	e.logger.Info("script updated", "path", path, "backup", backup)
	return true, backup, nil
}
