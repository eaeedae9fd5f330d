package bookmarks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JobBookmark marks a job worth finding again.
type JobBookmark struct {
	JobID string `json:"job_id"`
	Name  string `json:"name"`
	Added string `json:"added"`
}

// ScriptBookmark marks a submission script.
type ScriptBookmark struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Added string `json:"added"`
}

type store struct {
	Jobs    []JobBookmark    `json:"jobs"`
	Scripts []ScriptBookmark `json:"scripts"`
}

// Manager persists job and script bookmarks as a JSON document under the
// user's config directory. Adding an existing bookmark is a no-op
// returning false.
type Manager struct {
	file string
	now  func() time.Time

	mu   sync.Mutex
	data store
}

// NewManager opens (or initializes) the bookmark store. An empty configDir
// defaults to ~/.config/slurm-tui. A malformed store file starts empty
// rather than failing.
func NewManager(configDir string) (*Manager, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable to resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "slurm-tui")
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("unable to create config directory(%s): %w", configDir, err)
	}

	m := &Manager{
		file: filepath.Join(configDir, "bookmarks.json"),
		now:  time.Now,
	}
	if raw, err := os.ReadFile(m.file); err == nil {
		_ = json.Unmarshal(raw, &m.data)
	}
	return m, nil
}

func (m *Manager) save() error {
	raw, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.file, raw, 0o644)
}

// AddJob bookmarks a job; false when already bookmarked.
func (m *Manager) AddJob(jobID, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.data.Jobs {
		if b.JobID == jobID {
			return false
		}
	}
	m.data.Jobs = append(m.data.Jobs, JobBookmark{
		JobID: jobID,
		Name:  name,
		Added: m.now().Format(time.RFC3339),
	})
	_ = m.save()
	return true
}

// AddScript bookmarks a script path; false when already bookmarked.
func (m *Manager) AddScript(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.data.Scripts {
		if b.Path == path {
			return false
		}
	}
	m.data.Scripts = append(m.data.Scripts, ScriptBookmark{
		Path:  path,
		Name:  filepath.Base(path),
		Added: m.now().Format(time.RFC3339),
	})
	_ = m.save()
	return true
}

// RemoveJob drops a job bookmark; false when absent.
func (m *Manager) RemoveJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.data.Jobs {
		if b.JobID == jobID {
			m.data.Jobs = append(m.data.Jobs[:i], m.data.Jobs[i+1:]...)
			_ = m.save()
			return true
		}
	}
	return false
}

// RemoveScript drops a script bookmark; false when absent.
func (m *Manager) RemoveScript(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.data.Scripts {
		if b.Path == path {
			m.data.Scripts = append(m.data.Scripts[:i], m.data.Scripts[i+1:]...)
			_ = m.save()
			return true
		}
	}
	return false
}

// Jobs returns the job bookmarks, newest last.
func (m *Manager) Jobs() []JobBookmark {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobBookmark, len(m.data.Jobs))
	copy(out, m.data.Jobs)
	return out
}

// Scripts returns the script bookmarks, newest last.
func (m *Manager) Scripts() []ScriptBookmark {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ScriptBookmark, len(m.data.Scripts))
	copy(out, m.data.Scripts)
	return out
}
