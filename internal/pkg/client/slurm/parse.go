package slurm

import (
	"regexp"
	"strconv"
	"strings"
)

// Schema declares the shape of one delimiter-separated command output:
// the field delimiter and the minimum number of fields a row must carry to
// be usable. Rows below the minimum are skipped, never fatal.
type Schema struct {
	Delimiter string
	MinFields int
}

// ParseStats reports row-level tolerance of one parse pass. Skipped counts
// anomalies the caller may surface; a skipped row never aborts the pass.
type ParseStats struct {
	Lines   int
	Skipped int
}

// forEachRow splits raw output into rows per schema and hands usable rows
// to fn. One pass only; callers needing a re-parse re-invoke the command.
func forEachRow(raw string, schema Schema, fn func(fields []string)) ParseStats {
	var stats ParseStats
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		stats.Lines++
		fields := strings.Split(line, schema.Delimiter)
		if len(fields) < schema.MinFields {
			stats.Skipped++
			continue
		}
		fn(fields)
	}
	return stats
}

// gresRe matches one gpu group of a gres string, e.g. "gpu:4" or
// "gpu:a100:2". A field may carry several comma or colon segmented groups.
var gresRe = regexp.MustCompile(`gpu(?::[^:,\s]+)?:(\d+)`)

// SumGres sums the counts of every gpu group in a gres field. All groups
// count, regardless of device type; "gpu:a100:2,gpu:v100:1" sums to 3.
func SumGres(gres string) int {
	total := 0
	for _, m := range gresRe.FindAllStringSubmatch(gres, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// atoi is the tolerant integer read used all over squeue/sinfo output:
// anything non-numeric counts as zero.
func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// atof is the tolerant float read for sreport hour columns.
func atof(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
