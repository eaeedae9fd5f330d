package slurm

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSumGres(t *testing.T) {
	cases := []struct {
		gres string
		want int
	}{
		{"gpu:4", 4},
		{"gpu:a100:2", 2},
		{"gpu:a100:2,gpu:v100:1", 3},
		{"gpu:a100:2,gres/shard:4", 2},
		{"(null)", 0},
		{"", 0},
		{"N/A", 0},
		{"cpu:8", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, SumGres(tc.gres), tc.want, "gres=%q", tc.gres)
	}
}

func TestForEachRowSkipsShortRows(t *testing.T) {
	raw := "a|b|c\nshort\n\na|b|c|d\n"
	var rows [][]string
	stats := forEachRow(raw, Schema{Delimiter: "|", MinFields: 3}, func(fields []string) {
		rows = append(rows, fields)
	})
	assert.Equal(t, stats.Lines, 3)
	assert.Equal(t, stats.Skipped, 1)
	assert.Equal(t, len(rows), 2)
	// Extra columns pass through untouched.
	assert.Equal(t, len(rows[1]), 4)
}

func TestForEachRowEmptyInput(t *testing.T) {
	stats := forEachRow("", Schema{Delimiter: "|", MinFields: 1}, func([]string) {
		t.Fatal("no rows expected")
	})
	assert.Equal(t, stats.Lines, 0)
}
