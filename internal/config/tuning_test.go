package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuningConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.Equal(t, 25.0, cfg.SampleRate())
	assert.Equal(t, 10*time.Second, cfg.RetirementThreshold())
	assert.Equal(t, time.Second, cfg.HysteresisGreen())
	assert.Equal(t, 300*time.Millisecond, cfg.HysteresisSafetyCar())
	assert.Equal(t, 7, cfg.SGMaxWindowLength())
	assert.Equal(t, 2, cfg.SGPolynomialOrder())
	assert.Equal(t, 50000, cfg.PreserializeCap())
	assert.Equal(t, 300*time.Second, cfg.ReadyWaitTimeout())
	assert.Equal(t, 60.0, cfg.TickRate())
	assert.Equal(t, 10*time.Millisecond, cfg.CommandReadTimeout())

	// Defaults to min(hw concurrency, driver count).
	workers := cfg.ExtractionWorkerCount(20)
	assert.GreaterOrEqual(t, workers, 1)
	assert.LessOrEqual(t, workers, 20)
	assert.Equal(t, min(runtime.NumCPU(), 2), cfg.ExtractionWorkerCount(2))
}

func TestTuningConfig_NilReceiverUsesDefaults(t *testing.T) {
	t.Parallel()

	var cfg *TuningConfig
	assert.Equal(t, 25.0, cfg.SampleRate())
	assert.Equal(t, 10*time.Second, cfg.RetirementThreshold())
}

func TestLoadTuningConfig_PartialOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"sample_rate_hz": 50,
		"retirement_threshold_secs": 5,
		"extraction_workers": 4
	}`), 0o644))

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.SampleRate())
	assert.Equal(t, 5*time.Second, cfg.RetirementThreshold())
	assert.Equal(t, 4, cfg.ExtractionWorkerCount(20))
	// Fields omitted from the file keep their compiled-in defaults.
	assert.Equal(t, time.Second, cfg.HysteresisGreen())
	assert.Equal(t, 50000, cfg.PreserializeCap())
}

func TestLoadTuningConfig_RejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := LoadTuningConfig(path)
	assert.Error(t, err)
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
