package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the static configuration surface: partition capacities, the
// ranking exclusion set, the report window and refresh knobs. A YAML file
// overlays the defaults; every field is optional.
type Config struct {
	// Partitions maps partition name to total gpu capacity. Live discovery
	// overrides these counts when it succeeds; an unconfigured,
	// undiscovered partition has capacity 0 and reports 0% utilization.
	Partitions map[string]int `yaml:"partitions"`

	// ExcludeUsers are administrative/service accounts dropped from the
	// usage ranking.
	ExcludeUsers []string `yaml:"exclude_users"`

	// ReportStart/ReportEnd bound the usage report, YYYY-MM-DD. Empty
	// means the current calendar year.
	ReportStart string `yaml:"report_start"`
	ReportEnd   string `yaml:"report_end"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`
	TopN            int           `yaml:"top_n"`

	// AllUsers switches the job list from the invoking user to everyone.
	AllUsers bool `yaml:"all_users"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Partitions: map[string]int{
			"p0": 8,
			"p1": 16,
			"p2": 32,
			"p4": 8,
		},
		ExcludeUsers:    []string{"root", "thn", "cs"},
		RefreshInterval: 10 * time.Second,
		TopN:            20,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file(%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config file(%s): %w", path, err)
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	return cfg, nil
}

// ReportWindow resolves the usage report bounds, defaulting to the current
// calendar year of now.
func (c *Config) ReportWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	end := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, now.Location())
	if t, err := time.Parse("2006-01-02", c.ReportStart); err == nil && c.ReportStart != "" {
		start = t
	}
	if t, err := time.Parse("2006-01-02", c.ReportEnd); err == nil && c.ReportEnd != "" {
		end = t
	}
	return start, end
}

// Excluded returns the exclusion set keyed for lookup.
func (c *Config) Excluded() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ExcludeUsers))
	for _, u := range c.ExcludeUsers {
		set[u] = struct{}{}
	}
	return set
}
