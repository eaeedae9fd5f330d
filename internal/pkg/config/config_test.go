package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestLoadDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	assert.NilError(t, err)
	assert.Equal(t, cfg.Partitions["p2"], 32)
	assert.Equal(t, cfg.RefreshInterval, 10*time.Second)
	assert.Equal(t, cfg.TopN, 20)
	assert.DeepEqual(t, cfg.ExcludeUsers, []string{"root", "thn", "cs"})
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
partitions:
  gpu-large: 64
exclude_users: [svc]
refresh_interval: 30s
top_n: 5
all_users: true
`
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Partitions["gpu-large"], 64)
	assert.DeepEqual(t, cfg.ExcludeUsers, []string{"svc"})
	assert.Equal(t, cfg.RefreshInterval, 30*time.Second)
	assert.Equal(t, cfg.TopN, 5)
	assert.Assert(t, cfg.AllUsers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "unable to read config file")
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NilError(t, os.WriteFile(path, []byte("partitions: ["), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "unable to parse config file")
}

func TestReportWindowDefaultsToCalendarYear(t *testing.T) {
	cfg := Default()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	start, end := cfg.ReportWindow(now)
	assert.Equal(t, start.Format("2006-01-02"), "2026-01-01")
	assert.Equal(t, end.Format("2006-01-02"), "2026-12-31")
}

func TestReportWindowHonorsConfiguredBounds(t *testing.T) {
	cfg := Default()
	cfg.ReportStart = "2025-06-01"
	cfg.ReportEnd = "2025-06-30"
	start, end := cfg.ReportWindow(time.Now())
	assert.Equal(t, start.Format("2006-01-02"), "2025-06-01")
	assert.Equal(t, end.Format("2006-01-02"), "2025-06-30")
}

func TestExcluded(t *testing.T) {
	set := Default().Excluded()
	_, ok := set["root"]
	assert.Assert(t, ok)
	_, ok = set["alice"]
	assert.Assert(t, !ok)
}
