// Package config holds the tunable parameters of the race-frame pipeline
// and replay engine: a root struct of optional pointer fields loaded from
// JSON, with accessor methods that fall back to compiled-in defaults for
// any field the file omits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultConfigPath is the canonical tuning defaults file, if one is
// deployed alongside the binary.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds every parameter a deployment may want to override
// without a rebuild. Fields are pointers so a partial JSON file leaves
// unset fields at their compiled-in default (see Get* accessors).
type TuningConfig struct {
	// Timeline / resampling
	SampleRateHz *float64 `json:"sample_rate_hz,omitempty"`

	// Retirement tracker
	RetirementThresholdSecs *float64 `json:"retirement_threshold_secs,omitempty"`

	// Leaderboard hysteresis
	HysteresisGreenSecs *float64 `json:"hysteresis_green_secs,omitempty"`
	HysteresisSCSecs    *float64 `json:"hysteresis_sc_secs,omitempty"`

	// Interval smoother (Savitzky-Golay)
	SGMaxWindow    *int `json:"sg_max_window,omitempty"`
	SGPolyOrder    *int `json:"sg_poly_order,omitempty"`

	// Replay session manager
	PreserializeFrameCap *int    `json:"preserialize_frame_cap,omitempty"`
	ReadyWaitTimeoutSecs *float64 `json:"ready_wait_timeout_secs,omitempty"`

	// Streaming loop
	TickHz            *float64 `json:"tick_hz,omitempty"`
	CommandReadMillis *int     `json:"command_read_millis,omitempty"`

	// Worker pool
	ExtractionWorkers *int `json:"extraction_workers,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with every field nil; Get*
// accessors then supply compiled-in defaults for all of them.
func EmptyTuningConfig() *TuningConfig { return &TuningConfig{} }

// LoadTuningConfig loads and merges a TuningConfig from a JSON file. Fields
// omitted from the file keep their compiled-in defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *TuningConfig) SampleRate() float64 {
	if c != nil && c.SampleRateHz != nil {
		return *c.SampleRateHz
	}
	return 25.0
}

func (c *TuningConfig) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.SampleRate())
}

func (c *TuningConfig) RetirementThreshold() time.Duration {
	if c != nil && c.RetirementThresholdSecs != nil {
		return time.Duration(*c.RetirementThresholdSecs * float64(time.Second))
	}
	return 10 * time.Second
}

func (c *TuningConfig) HysteresisGreen() time.Duration {
	if c != nil && c.HysteresisGreenSecs != nil {
		return time.Duration(*c.HysteresisGreenSecs * float64(time.Second))
	}
	return 1 * time.Second
}

func (c *TuningConfig) HysteresisSafetyCar() time.Duration {
	if c != nil && c.HysteresisSCSecs != nil {
		return time.Duration(*c.HysteresisSCSecs * float64(time.Second))
	}
	return 300 * time.Millisecond
}

func (c *TuningConfig) SGPolynomialOrder() int {
	if c != nil && c.SGPolyOrder != nil {
		return *c.SGPolyOrder
	}
	return 2
}

func (c *TuningConfig) SGMaxWindowLength() int {
	if c != nil && c.SGMaxWindow != nil {
		return *c.SGMaxWindow
	}
	return 7
}

func (c *TuningConfig) PreserializeCap() int {
	if c != nil && c.PreserializeFrameCap != nil {
		return *c.PreserializeFrameCap
	}
	return 50000
}

func (c *TuningConfig) ReadyWaitTimeout() time.Duration {
	if c != nil && c.ReadyWaitTimeoutSecs != nil {
		return time.Duration(*c.ReadyWaitTimeoutSecs * float64(time.Second))
	}
	return 300 * time.Second
}

func (c *TuningConfig) TickRate() float64 {
	if c != nil && c.TickHz != nil {
		return *c.TickHz
	}
	return 60.0
}

func (c *TuningConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate())
}

func (c *TuningConfig) CommandReadTimeout() time.Duration {
	if c != nil && c.CommandReadMillis != nil {
		return time.Duration(*c.CommandReadMillis) * time.Millisecond
	}
	return 10 * time.Millisecond
}

func (c *TuningConfig) ExtractionWorkerCount(driverCount int) int {
	if c != nil && c.ExtractionWorkers != nil && *c.ExtractionWorkers > 0 {
		return *c.ExtractionWorkers
	}
	workers := runtime.NumCPU()
	if driverCount < workers {
		workers = driverCount
	}
	return workers
}
