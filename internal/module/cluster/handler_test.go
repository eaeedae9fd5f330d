package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gotest.tools/v3/assert"

	"github.com/ChipCracker/slurm-tui/internal/bookmarks"
	"github.com/ChipCracker/slurm-tui/internal/monitor"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/exec"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm"
	"github.com/ChipCracker/slurm-tui/internal/pkg/client/slurm/model"
	"github.com/ChipCracker/slurm-tui/internal/script"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner replays canned command output and records every invocation.
type stubRunner struct {
	out   map[string]exec.Result
	calls []string
}

func (s *stubRunner) Run(_ context.Context, name string, _ ...string) (exec.Result, error) {
	s.calls = append(s.calls, name)
	return s.out[name], nil
}

func (s *stubRunner) called(name string) bool {
	for _, c := range s.calls {
		if c == name {
			return true
		}
	}
	return false
}

// envelope mirrors the wire shape of the response wrapper for decoding.
type envelope struct {
	Count   int             `json:"count"`
	Next    string          `json:"next"`
	Results json.RawMessage `json:"results"`
	Detail  string          `json:"detail"`
}

func newTestRouter(t *testing.T, runner *stubRunner, snap *monitor.Snapshot) (*gin.Engine, *Router) {
	t.Helper()
	logger := slog.Default()
	slurmc := slurm.New(runner, logger)
	refresher := monitor.NewRefresher(time.Minute,
		func(context.Context) (*monitor.Snapshot, error) { return snap, nil },
		func(*monitor.Snapshot) {}, logger)
	books, err := bookmarks.NewManager(t.TempDir())
	assert.NilError(t, err)

	rt := NewRouter(refresher, script.NewEngine(logger), slurmc, books, logger)
	engine := gin.New()
	rt.Register(engine)

	if snap != nil {
		_, err := refresher.RefreshNow(context.Background())
		assert.NilError(t, err)
	}
	return engine, rt
}

func doJSON(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func testSnapshot() *monitor.Snapshot {
	return &monitor.Snapshot{
		Generation: "gen-1",
		Jobs: []model.Job{
			{ID: "1001", Name: "train", State: model.StateRunning, Partition: "p0", GPUs: 2},
			{ID: "1002", Name: "eval", State: model.StatePending, Partition: "p0"},
			{ID: "1003", Name: "infer", State: model.StateRunning, Partition: "p2", GPUs: 1},
		},
		Partitions: []monitor.PartitionGPU{{Partition: "p0", Allocated: 2, Total: 8}},
		Usage: []monitor.RankedUsage{
			{Rank: 1, UsageRow: model.UsageRow{User: "alice", Hours: 120}},
		},
	}
}

func TestSnapshotUnavailableBeforeFirstRefresh(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, nil)
	w := doJSON(engine, http.MethodGet, "/api/v1/cluster/snapshot", nil)
	assert.Equal(t, w.Code, http.StatusServiceUnavailable)
	assert.Assert(t, strings.Contains(decode(t, w).Detail, "no snapshot"))
}

func TestGetSnapshot(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodGet, "/api/v1/cluster/snapshot", nil)
	assert.Equal(t, w.Code, http.StatusOK)

	var snap struct {
		Generation string      `json:"generation"`
		Jobs       []model.Job `json:"jobs"`
		Stale      bool        `json:"stale"`
	}
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &snap))
	assert.Equal(t, snap.Generation, "gen-1")
	assert.Equal(t, len(snap.Jobs), 3)
	assert.Assert(t, !snap.Stale)
}

func TestGetJobsPaged(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodGet, "/api/v1/cluster/jobs?paging=true&page=1&page_size=2", nil)
	assert.Equal(t, w.Code, http.StatusOK)

	env := decode(t, w)
	assert.Equal(t, env.Count, 3)
	assert.Assert(t, strings.Contains(env.Next, "page=2"))

	var jobs []model.Job
	assert.NilError(t, json.Unmarshal(env.Results, &jobs))
	assert.Equal(t, len(jobs), 2)
}

func TestGetPartitions(t *testing.T) {
	runner := &stubRunner{out: map[string]exec.Result{
		"sinfo": {Stdout: "p0|up|4|2/2|10/22/0/32\np2*|up|16|12/4|96/24/8/128"},
	}}
	engine, _ := newTestRouter(t, runner, testSnapshot())

	w := doJSON(engine, http.MethodGet, "/api/v1/cluster/partitions", nil)
	assert.Equal(t, w.Code, http.StatusOK)

	env := decode(t, w)
	assert.Equal(t, env.Count, 2)
	var parts []model.Partition
	assert.NilError(t, json.Unmarshal(env.Results, &parts))
	assert.Equal(t, parts[1].Name, "p2")
	assert.Equal(t, parts[1].TotalCPUs, 128)
}

func TestGetGPUHours(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodGet, "/api/v1/cluster/gpu-hours", nil)
	assert.Equal(t, w.Code, http.StatusOK)

	var gh GPUHours
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &gh))
	assert.Equal(t, len(gh.Usage), 1)
	assert.Equal(t, gh.Usage[0].User, "alice")
	assert.Assert(t, !gh.Stale)
}

func TestRefreshEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/refresh", nil)
	assert.Equal(t, w.Code, http.StatusOK)

	var res RefreshResult
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &res))
	assert.Equal(t, res.Generation, "gen-1")
}

func TestCancelWithoutConfirmAborts(t *testing.T) {
	runner := &stubRunner{out: map[string]exec.Result{
		"squeue": {Stdout: "1001|train|R|p0|gpu:2|4|8G|1:00|node01|alice"},
	}}
	engine, _ := newTestRouter(t, runner, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/1001/cancel", ActionRequest{Confirm: false})
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(string(decode(t, w).Results), `"aborted"`))
	// The declined confirmation never reached the scheduler.
	assert.Assert(t, !runner.called("scancel"))
}

func TestCancelConfirmed(t *testing.T) {
	runner := &stubRunner{out: map[string]exec.Result{
		"squeue": {Stdout: "1001|train|R|p0|gpu:2|4|8G|1:00|node01|alice"},
	}}
	engine, _ := newTestRouter(t, runner, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/1001/cancel", ActionRequest{Confirm: true})
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Assert(t, strings.Contains(string(decode(t, w).Results), `"executed"`))
	assert.Assert(t, runner.called("scancel"))
}

func TestCancelOutOfRangeSelector(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/99/cancel", ActionRequest{Confirm: true})
	assert.Equal(t, w.Code, http.StatusBadRequest)
}

func TestCancelVanishedJob(t *testing.T) {
	// squeue returns nothing: the job finished between listing and action.
	engine, _ := newTestRouter(t, &stubRunner{out: map[string]exec.Result{"squeue": {}}}, testSnapshot())
	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/1001/cancel", ActionRequest{Confirm: true})
	assert.Equal(t, w.Code, http.StatusConflict)
}

func TestAttachPendingJobConflicts(t *testing.T) {
	runner := &stubRunner{out: map[string]exec.Result{
		"squeue": {Stdout: "1002|eval|PD|p0|gpu:1|4|8G|0:00||alice"},
	}}
	engine, _ := newTestRouter(t, runner, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/1002/attach", ActionRequest{Confirm: true})
	assert.Equal(t, w.Code, http.StatusConflict)
	assert.Assert(t, strings.Contains(decode(t, w).Detail, "not running"))
}

func TestSubmitJob(t *testing.T) {
	runner := &stubRunner{out: map[string]exec.Result{
		"sbatch": {Stdout: "Submitted batch job 4242\n"},
	}}
	engine, _ := newTestRouter(t, runner, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/submit", SubmitRequest{Path: "/work/job.slurm"})
	assert.Equal(t, w.Code, http.StatusOK)

	var res SubmitResult
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &res))
	assert.Equal(t, res.JobID, "4242")
}

func TestSubmitJobMissingPath(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())
	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/jobs/submit", map[string]string{})
	assert.Equal(t, w.Code, http.StatusBadRequest)
}

func TestEditScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.slurm")
	assert.NilError(t, os.WriteFile(path, []byte("#!/bin/bash\n#SBATCH --partition=p0\nrun\n"), 0o644))
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/scripts/edit", EditRequest{Path: path, Partition: "p2"})
	assert.Equal(t, w.Code, http.StatusOK)

	var res EditResult
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &res))
	assert.Assert(t, res.Changed)
	assert.Assert(t, res.Backup != "")

	data, err := os.ReadFile(path)
	assert.NilError(t, err)
	assert.Assert(t, strings.Contains(string(data), "#SBATCH --partition=p2\n"))
}

func TestEditScriptConflictingMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.slurm")
	content := "#!/bin/bash\n#SBATCH --mem=8G\n#SBATCH --mem-per-cpu=2G\nrun\n"
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/scripts/edit", EditRequest{Path: path, Memory: "16G"})
	assert.Equal(t, w.Code, http.StatusConflict)
}

func TestBookmarkLifecycle(t *testing.T) {
	engine, _ := newTestRouter(t, &stubRunner{}, testSnapshot())

	w := doJSON(engine, http.MethodPost, "/api/v1/cluster/bookmarks/jobs", JobBookmarkRequest{JobID: "1001", Name: "train"})
	assert.Equal(t, w.Code, http.StatusOK)

	w = doJSON(engine, http.MethodGet, "/api/v1/cluster/bookmarks", nil)
	assert.Equal(t, w.Code, http.StatusOK)
	var list Bookmarks
	assert.NilError(t, json.Unmarshal(decode(t, w).Results, &list))
	assert.Equal(t, len(list.Jobs), 1)
	assert.Equal(t, list.Jobs[0].JobID, "1001")

	w = doJSON(engine, http.MethodDelete, "/api/v1/cluster/bookmarks/jobs/1001", nil)
	assert.Equal(t, w.Code, http.StatusOK)
	w = doJSON(engine, http.MethodDelete, "/api/v1/cluster/bookmarks/jobs/1001", nil)
	assert.Equal(t, w.Code, http.StatusNotFound)
}
