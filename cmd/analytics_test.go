//go:build !integration

package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/phasebridge/transition-cli/internal/analytics"
	"github.com/phasebridge/transition-cli/internal/model"
)

func sampleRollup() *analytics.Rollup {
	return &analytics.Rollup{
		TotalTransitions: 4,
		CountsByConfidence: map[model.Confidence]int{
			model.ConfidenceHigh:     1,
			model.ConfidenceLikely:   2,
			model.ConfidencePossible: 1,
		},
		ByPhase: map[model.Phase]int{
			model.PhaseII: 3,
			model.PhaseI:  1,
		},
		ByAgency:   map[string]int{"Department of Defense": 3, "NASA": 1},
		ByTechArea: map[string]int{"ai_ml": 2, "unknown": 2},
		ByAward:    map[string]int{"A-1": 2, "A-2": 1, "A-3": 1},
		ByCompany: []analytics.CompanyTransitionProfile{
			{
				Key:         "NOVA12345678",
				Name:        "Nova Systems LLC",
				Transitions: 3,
				High:        1,
				AvgScore:    0.81,
				Agencies:    []string{"Department of Defense"},
			},
			{
				Key:         "ORBW87654321",
				Name:        "Orbital Works Inc",
				Transitions: 1,
				AvgScore:    0.66,
				Agencies:    []string{"NASA"},
			},
		},
		Timing:           analytics.TimingStats{Samples: 3, P25: 30, Median: 45, P75: 90, P90: 180},
		PatentBackedRate: 0.5,
	}
}

func TestFormatRollupTable(t *testing.T) {
	var buf bytes.Buffer
	formatRollupTable(&buf, sampleRollup())

	output := buf.String()
	assert.Contains(t, output, "Transitions:")
	assert.Contains(t, output, "HIGH:")
	assert.Contains(t, output, "50.0%")
	assert.Contains(t, output, "p25 30 / median 45 / p75 90 / p90 180")
	assert.Contains(t, output, "Phase II")
	assert.Contains(t, output, "Top agencies:")
	assert.Contains(t, output, "Department of Defense")
	assert.Contains(t, output, "Top companies:")
	assert.Contains(t, output, "Nova Systems LLC")
	assert.Contains(t, output, "0.810")
}

func TestFormatRollupTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRollupTable(&buf, &analytics.Rollup{})

	assert.Contains(t, buf.String(), "No transitions to report.")
}

func TestWriteRollupCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRollupCSV(&buf, sampleRollup()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"dimension", "key", "value"}, records[0])

	rows := make(map[[2]string]string, len(records))
	for _, rec := range records[1:] {
		rows[[2]string{rec[0], rec[1]}] = rec[2]
	}
	assert.Equal(t, "4", rows[[2]string{"summary", "total_transitions"}])
	assert.Equal(t, "2", rows[[2]string{"confidence", "LIKELY"}])
	assert.Equal(t, "3", rows[[2]string{"phase", "Phase II"}])
	assert.Equal(t, "3", rows[[2]string{"agency", "Department of Defense"}])
	assert.Equal(t, "3", rows[[2]string{"company", "NOVA12345678"}])
	assert.Equal(t, "45", rows[[2]string{"timing", "median_days"}])
}

func TestWriteRollupXLSX_OneSheetPerDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollup.xlsx")
	require.NoError(t, writeRollupXLSX(path, sampleRollup()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	for _, name := range []string{"Summary", "Confidence", "Phase", "Agencies", "Tech Areas", "Awards", "Companies", "Timing"} {
		_, ok := f.Sheet[name]
		assert.True(t, ok, "missing sheet %s", name)
	}

	agencies := f.Sheet["Agencies"]
	require.NotNil(t, agencies)
	require.GreaterOrEqual(t, len(agencies.Rows), 3)
	assert.Equal(t, "Key", agencies.Rows[0].Cells[0].String())
	assert.Equal(t, "Department of Defense", agencies.Rows[1].Cells[0].String())

	companies := f.Sheet["Companies"]
	require.NotNil(t, companies)
	require.GreaterOrEqual(t, len(companies.Rows), 3)
	assert.Equal(t, "Nova Systems LLC", companies.Rows[1].Cells[1].String())
}

func TestReadTransitionsFile_DetectResult(t *testing.T) {
	doc := map[string]any{
		"run_id": "run-1",
		"transitions": []*model.Transition{
			sampleTransition("t-1", "A-1", "C-1", 0.9, model.ConfidenceHigh, nil),
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	transitions, err := readTransitionsFile(path)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "t-1", transitions[0].ID)
}

func TestReadTransitionsFile_BareArray(t *testing.T) {
	list := []*model.Transition{
		sampleTransition("t-1", "A-1", "C-1", 0.9, model.ConfidenceHigh, nil),
		sampleTransition("t-2", "A-2", "C-2", 0.7, model.ConfidenceLikely, nil),
	}
	data, err := json.Marshal(list)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "transitions.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	transitions, err := readTransitionsFile(path)
	require.NoError(t, err)
	assert.Len(t, transitions, 2)
}

func TestReadTransitionsFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := readTransitionsFile(path)
	require.Error(t, err)
}

func TestSortedCounts(t *testing.T) {
	entries := sortedCounts(map[string]int{"b": 2, "a": 2, "c": 5})
	require.Len(t, entries, 3)
	assert.Equal(t, countEntry{Key: "c", Count: 5}, entries[0])
	assert.Equal(t, countEntry{Key: "a", Count: 2}, entries[1])
	assert.Equal(t, countEntry{Key: "b", Count: 2}, entries[2])
}
