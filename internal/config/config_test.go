package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "transitions.db", cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Detect.Workers)
	assert.Equal(t, 500, cfg.Detect.BatchSize)
	assert.Equal(t, 180, cfg.Detect.Block.MaxDaysBefore)
	assert.Equal(t, 1095, cfg.Detect.Block.MaxDaysAfter)
	assert.InDelta(t, 0.5, cfg.Detect.BaseScore, 0.001)
	assert.InDelta(t, 0.80, cfg.Resolver.FuzzyThreshold, 0.001)
	assert.InDelta(t, 0.90, cfg.Resolver.FuzzyDiscount, 0.001)
	assert.InDelta(t, 0.20, cfg.Weights.TimingProximity, 0.001)
	assert.InDelta(t, 0.0625, cfg.Weights.AgencyContinuity, 0.001)
	assert.InDelta(t, 0.0625, cfg.Weights.VendorMatch, 0.001)
	assert.InDelta(t, 0.85, cfg.Bands.High, 0.001)
	assert.InDelta(t, 0.65, cfg.Bands.Likely, 0.001)

	require.Len(t, cfg.Timing.Windows, 3)
	assert.Equal(t, 90, cfg.Timing.Windows[0].MaxDays)
	assert.InDelta(t, 1.0, cfg.Timing.Windows[0].Score, 0.001)
	assert.Equal(t, 365, cfg.Timing.Windows[2].MaxDays)
	assert.InDelta(t, 0.4, cfg.Timing.Windows[2].Score, 0.001)
	assert.InDelta(t, 0.1, cfg.Timing.BeyondScore, 0.001)
	assert.InDelta(t, 0.05, cfg.Timing.NegativeScore, 0.001)

	// Defaults must also validate.
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
detect:
  workers: 2
  base_score: 0.4
bands:
  high: 0.9
  likely: 0.7
store:
  driver: postgres
  database_url: postgres://localhost/transitions
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Detect.Workers)
	assert.InDelta(t, 0.4, cfg.Detect.BaseScore, 0.001)
	assert.InDelta(t, 0.9, cfg.Bands.High, 0.001)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/transitions", cfg.Store.DatabaseURL)
	// Defaults still apply for unset values
	assert.Equal(t, 500, cfg.Detect.BatchSize)
	assert.InDelta(t, 0.80, cfg.Resolver.FuzzyThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
detect:
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TRANSITION_LOG_LEVEL", "warn")
	t.Setenv("TRANSITION_DETECT_WORKERS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Detect.Workers)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("TRANSITION_DETECT_BATCH_SIZE", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Detect.BatchSize)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := Default()
	cfg.Weights.Patent = -0.1

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "weights.patent must be >= 0")
}

func TestValidate_BaseScoreRange(t *testing.T) {
	cfg := Default()
	cfg.Detect.BaseScore = 1.2

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "detect.base_score must be in [0,1]")
}

func TestValidate_WeightSumOverflow(t *testing.T) {
	cfg := Default()
	cfg.Weights.TimingProximity = 0.9

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base_score + weight sum must be <= 1")
}

func TestValidate_WeightSumExactlyOne(t *testing.T) {
	cfg := Default()
	cfg.Detect.BaseScore = 0.5
	cfg.Weights = Weights{
		AgencyContinuity: 0.1,
		TimingProximity:  0.2,
		CompetitionType:  0.05,
		Patent:           0.05,
		TechArea:         0.02,
		VendorMatch:      0.08,
	}

	// Sum is exactly 1.0; that is allowed.
	assert.NoError(t, cfg.Validate())
}

func TestValidate_WorkerAndBatchBounds(t *testing.T) {
	cfg := Default()
	cfg.Detect.Workers = 0
	cfg.Detect.BatchSize = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "detect.workers must be >= 1")
	assert.Contains(t, err.Error(), "detect.batch_size must be >= 1")
}

func TestValidate_FuzzyBounds(t *testing.T) {
	cfg := Default()
	cfg.Resolver.FuzzyThreshold = 0

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "resolver.fuzzy_threshold must be in (0,1]")

	cfg = Default()
	cfg.Resolver.FuzzyDiscount = 1.5
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "resolver.fuzzy_discount must be in (0,1]")
}

func TestValidate_TimingWindows(t *testing.T) {
	cfg := Default()
	cfg.Timing.Windows = nil
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timing.windows must not be empty")

	cfg = Default()
	cfg.Timing.Windows = []TimingWindow{
		{MaxDays: 180, Score: 0.7},
		{MaxDays: 90, Score: 1.0},
	}
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timing.windows[1].max_days must exceed previous window")

	cfg = Default()
	cfg.Timing.Windows = []TimingWindow{
		{MaxDays: 90, Score: 0.4},
		{MaxDays: 180, Score: 0.9},
	}
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timing.windows[1].score must not exceed previous window")
}

func TestValidate_BeyondScoreAboveLastWindow(t *testing.T) {
	cfg := Default()
	cfg.Timing.BeyondScore = 0.5

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timing.beyond_score")
}

func TestValidate_InvertedBands(t *testing.T) {
	cfg := Default()
	cfg.Bands.High = 0.5

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bands must satisfy 0 < likely < high <= 1")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
}

func TestWeightsSum(t *testing.T) {
	w := Weights{
		AgencyContinuity: 0.1,
		TimingProximity:  0.2,
		CompetitionType:  0.05,
		Patent:           0.05,
		TechArea:         0.02,
		VendorMatch:      0.08,
	}
	assert.InDelta(t, 0.5, w.Sum(), 1e-9)
}
