package script

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.slurm")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o750))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	assert.NilError(t, err)
	return string(data)
}

func intPtr(n int) *int { return &n }

func TestApplyUpdatesDirectives(t *testing.T) {
	path := writeScript(t, sampleScript)
	e := NewEngine(slog.Default())

	changed, backup, err := e.Apply(path, Request{
		Partition: "p2",
		QoS:       "high",
		GPUs:      intPtr(4),
	})
	assert.NilError(t, err)
	assert.Assert(t, changed)

	out := readFile(t, path)
	assert.Assert(t, strings.Contains(out, "#SBATCH --partition=p2\n"))
	assert.Assert(t, strings.Contains(out, "#SBATCH --qos=high\n"))
	// The device type of the existing gres survives the count change.
	assert.Assert(t, strings.Contains(out, "#SBATCH --gres=gpu:a100:4\n"))
	// Launcher flags in the body follow the gpu count.
	assert.Assert(t, strings.Contains(out, "--nproc_per_node=4 train.py"))

	// The backup holds the original bytes.
	assert.Equal(t, readFile(t, backup), sampleScript)
}

func TestApplyBareGres(t *testing.T) {
	path := writeScript(t, "#!/bin/bash\n#SBATCH --gres=gpu:2\nrun\n")
	e := NewEngine(slog.Default())

	changed, _, err := e.Apply(path, Request{GPUs: intPtr(8)})
	assert.NilError(t, err)
	assert.Assert(t, changed)
	assert.Assert(t, strings.Contains(readFile(t, path), "#SBATCH --gres=gpu:8\n"))
}

func TestApplySecondEditIsNoOp(t *testing.T) {
	path := writeScript(t, sampleScript)
	e := NewEngine(slog.Default())
	req := Request{QoS: "interactive"}

	changed, _, err := e.Apply(path, req)
	assert.NilError(t, err)
	assert.Assert(t, changed)
	after := readFile(t, path)

	changed, backup, err := e.Apply(path, req)
	assert.NilError(t, err)
	assert.Assert(t, !changed)
	assert.Equal(t, backup, "")
	assert.Equal(t, readFile(t, path), after)
}

func TestApplyMemoryModeFollowsScript(t *testing.T) {
	// A script using mem keeps mem.
	path := writeScript(t, "#!/bin/bash\n#SBATCH --mem=8G\nrun\n")
	e := NewEngine(slog.Default())
	_, _, err := e.Apply(path, Request{Memory: "32G"})
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(readFile(t, path), "#SBATCH --mem=32G\n"))

	// A script naming neither gets mem-per-cpu.
	path = writeScript(t, "#!/bin/bash\n#SBATCH --partition=p0\nrun\n")
	_, _, err = e.Apply(path, Request{Memory: "4G"})
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(readFile(t, path), "#SBATCH --mem-per-cpu=4G\n"))
}

func TestApplyRejectsConflictingMemoryDirectives(t *testing.T) {
	original := "#!/bin/bash\n#SBATCH --mem=8G\n#SBATCH --mem-per-cpu=2G\nrun\n"
	path := writeScript(t, original)
	e := NewEngine(slog.Default())

	_, _, err := e.Apply(path, Request{Memory: "32G"})
	var merr *MutationError
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Kind, ConflictingDirectives)
	// Nothing was written.
	assert.Equal(t, readFile(t, path), original)
	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Equal(t, len(entries), 1)
}

func TestApplyMissingFile(t *testing.T) {
	e := NewEngine(slog.Default())
	_, _, err := e.Apply(filepath.Join(t.TempDir(), "absent.slurm"), Request{QoS: "x"})
	var merr *MutationError
	assert.Assert(t, errors.As(err, &merr))
	assert.Equal(t, merr.Kind, ReadFailed)
}

func TestApplyPreservesPermissions(t *testing.T) {
	path := writeScript(t, sampleScript)
	e := NewEngine(slog.Default())

	changed, _, err := e.Apply(path, Request{JobName: "retrain"})
	assert.NilError(t, err)
	assert.Assert(t, changed)

	info, err := os.Stat(path)
	assert.NilError(t, err)
	assert.Equal(t, info.Mode().Perm(), os.FileMode(0o750))
}
