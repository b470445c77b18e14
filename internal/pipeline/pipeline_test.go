package pipeline

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// synthLap builds one lap of telemetry: samples every 0.5s from t0 to
// t0+duration, distance growing linearly to lapDist, speed from speedAt.
func synthLap(lapNumber int, t0, duration, lapDist float64, speedAt func(t float64) float64) telemetry.LapRecord {
	n := int(duration/0.5) + 1
	tt := telemetry.TelemetryTable{
		Time:        make([]float64, n),
		X:           make([]float64, n),
		Y:           make([]float64, n),
		Distance:    make([]float64, n),
		RelDistance: make([]float64, n),
		Speed:       make([]float64, n),
		Gear:        make([]int, n),
		DRS:         make([]bool, n),
		Throttle:    make([]float64, n),
		Brake:       make([]float64, n),
		RPM:         make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ti := t0 + float64(i)*0.5
		frac := float64(i) / float64(n-1)
		tt.Time[i] = ti
		tt.X[i] = frac * 100
		tt.Y[i] = frac * 50
		tt.Distance[i] = frac * lapDist
		tt.RelDistance[i] = frac
		tt.Speed[i] = speedAt(ti)
		tt.Gear[i] = 4
		tt.Throttle[i] = 80
		tt.RPM[i] = 9000
	}
	lapTime := duration
	return telemetry.LapRecord{LapNumber: lapNumber, Compound: "SOFT", LapTime: &lapTime, Telemetry: tt}
}

func constSpeed(v float64) func(float64) float64 {
	return func(float64) float64 { return v }
}

func raceFixture(drivers map[string]*telemetry.FixtureDriver) *telemetry.FixtureAdapter {
	return telemetry.NewFixtureAdapter(&telemetry.FixtureDocument{
		Sessions: map[string]*telemetry.FixtureSession{
			"2024_1_R": {
				Drivers:     drivers,
				TrackStatus: []telemetry.TrackStatusRow{{Time: 0, StatusCode: "1"}},
				Weather:     []telemetry.WeatherRow{{Time: 0, TrackTempC: 38, AirTempC: 26, HumidityPct: 40}},
			},
		},
	})
}

func runPipeline(t *testing.T, adapter *telemetry.FixtureAdapter) *Result {
	t.Helper()
	result, err := Run(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, &Config{
		Adapter:    adapter,
		DriverInfo: adapter,
		Tuning:     config.EmptyTuningConfig(),
	}, nil)
	require.NoError(t, err)
	return result
}

func TestRun_EmptyUpstream(t *testing.T) {
	t.Parallel()

	adapter := raceFixture(map[string]*telemetry.FixtureDriver{})
	_, err := Run(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, &Config{
		Adapter: adapter,
		Tuning:  config.EmptyTuningConfig(),
	}, nil)
	require.Error(t, err)
	assert.Equal(t, "No valid telemetry data found for any driver", err.Error())
}

func TestRun_TwoDriverRace(t *testing.T) {
	t.Parallel()

	// Driver A: two 100m laps over [0,10] and [10,20]; driver B the same
	// shifted by 1s. Both run at a constant 36 km/h = 10 m/s.
	adapter := raceFixture(map[string]*telemetry.FixtureDriver{
		"AAA": {
			Laps: []telemetry.LapRecord{
				synthLap(1, 0, 10, 100, constSpeed(36)),
				synthLap(2, 10, 10, 100, constSpeed(36)),
			},
			Info: telemetry.DriverInfo{TeamName: "Alpha", CarNumber: 1, ColorRGB: [3]uint8{255, 0, 0}},
		},
		"BBB": {
			Laps: []telemetry.LapRecord{
				synthLap(1, 1, 10, 100, constSpeed(36)),
				synthLap(2, 11, 10, 100, constSpeed(36)),
			},
			Info: telemetry.DriverInfo{TeamName: "Beta", CarNumber: 2, ColorRGB: [3]uint8{0, 0, 255}},
		},
	})
	result := runPipeline(t, adapter)
	frames := result.Frames

	// Span is [0, 21] at 25 Hz.
	require.GreaterOrEqual(t, len(frames), 225)
	assert.InDelta(t, 525, float64(len(frames)), 1)

	// Timeline monotonicity: TS = k·Δt relative to frame 0.
	for k, f := range frames {
		assert.InDelta(t, float64(k)*0.04, f.TS, 1e-6, "frame %d", k)
	}

	// Dense positions in every frame.
	for k, f := range frames {
		positions := make([]int, 0, len(f.Drivers))
		for _, rec := range f.Drivers {
			positions = append(positions, rec.Position)
		}
		sort.Ints(positions)
		for i, p := range positions {
			require.Equal(t, i+1, p, "frame %d", k)
		}
	}

	// Race progress starts at 0 and never decreases.
	prev := map[string]float64{}
	for _, f := range frames {
		for code, rec := range f.Drivers {
			require.GreaterOrEqual(t, rec.RaceProgress+1e-9, prev[code], "driver %s", code)
			prev[code] = rec.RaceProgress
		}
	}

	// At t=5s driver A leads by 10m; B's deficit at 10 m/s is 1.0s.
	f := frames[125]
	require.Len(t, f.Drivers, 2)
	a, b := f.Drivers["AAA"], f.Drivers["BBB"]
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.InDelta(t, 50, a.RaceProgress, 1.0)
	assert.InDelta(t, 40, b.RaceProgress, 1.0)
	assert.InDelta(t, 1.0, b.GapToPreviousS, 0.1)
	assert.InDelta(t, 1.0, b.GapToLeaderS, 0.1)
	assert.Equal(t, 0.0, a.GapToPreviousS)
	assert.Equal(t, 0.0, a.GapToLeaderS)

	// Weather rides along.
	require.NotNil(t, f.Weather)
	assert.Equal(t, "DRY", f.Weather.RainState)

	// Metadata carries roster facts and the race start.
	assert.Equal(t, []string{"AAA", "BBB"}, result.Metadata.DriverCodes)
	assert.Equal(t, "Alpha", result.Metadata.DriverTeams["AAA"])
	assert.Equal(t, 2, result.Metadata.TotalLaps)
	assert.Equal(t, 0.0, result.Metadata.RaceStartTimeS)
}

func TestRun_Retirement(t *testing.T) {
	t.Parallel()

	stopsAt10 := func(ti float64) float64 {
		if ti >= 10 {
			return 0
		}
		return 36
	}
	adapter := raceFixture(map[string]*telemetry.FixtureDriver{
		"AAA": {Laps: []telemetry.LapRecord{synthLap(1, 0, 30, 300, constSpeed(36))}},
		"XXX": {Laps: []telemetry.LapRecord{synthLap(1, 0, 30, 300, stopsAt10)}},
	})
	result := runPipeline(t, adapter)
	frames := result.Frames

	// XXX stops at t=10; after 10s of zero speed it is retired and ranked
	// after the active partition. Check well past the threshold.
	late := frames[525] // t = 21s
	x := late.Drivers["XXX"]
	require.NotNil(t, x)
	assert.Equal(t, frame.StatusRetired, x.Status)
	assert.Equal(t, 2, x.Position)
	assert.Equal(t, 1, late.Drivers["AAA"].Position)

	// Retirement is sticky for every subsequent frame.
	seenRetired := false
	for _, f := range frames {
		rec, ok := f.Drivers["XXX"]
		if !ok {
			continue
		}
		if rec.Status == frame.StatusRetired {
			seenRetired = true
		} else {
			require.False(t, seenRetired, "retirement flag cleared at t=%.2f", f.TS)
		}
	}
	assert.True(t, seenRetired)
}

func TestRun_SkipsCorruptDriverAndContinues(t *testing.T) {
	t.Parallel()

	good := synthLap(1, 0, 10, 100, constSpeed(36))
	bad := synthLap(1, 0, 10, 100, constSpeed(36))
	bad.Telemetry.Time[3] = bad.Telemetry.Time[2] - 1 // non-monotonic

	adapter := raceFixture(map[string]*telemetry.FixtureDriver{
		"AAA": {Laps: []telemetry.LapRecord{good}},
		"ZZZ": {Laps: []telemetry.LapRecord{bad}},
	})
	result := runPipeline(t, adapter)

	assert.Equal(t, []string{"AAA"}, result.Metadata.DriverCodes)
	for _, f := range result.Frames {
		_, ok := f.Drivers["ZZZ"]
		assert.False(t, ok)
	}
}

func TestRun_ReportsProgressStages(t *testing.T) {
	t.Parallel()

	adapter := raceFixture(map[string]*telemetry.FixtureDriver{
		"AAA": {Laps: []telemetry.LapRecord{synthLap(1, 0, 10, 100, constSpeed(36))}},
	})

	var stages []Stage
	var percents []float64
	_, err := Run(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, &Config{
		Adapter: adapter,
		Tuning:  config.EmptyTuningConfig(),
	}, func(stage Stage, percent float64, _ string) {
		stages = append(stages, stage)
		percents = append(percents, percent)
	})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	assert.Equal(t, StageInit, stages[0])
	assert.Equal(t, 0.0, percents[0])
	assert.Contains(t, stages, StageTelemetry)
	assert.Contains(t, stages, StageFrames)
	assert.InDelta(t, 90, percents[len(percents)-1], 1e-6)
}

func TestSessionIDFormat(t *testing.T) {
	t.Parallel()

	// Fixture keys and cache keys share the "{year}_{round}_{kind}" form.
	s := telemetry.Session{Year: 2024, Round: 10, Kind: "SQ"}
	assert.Equal(t, "2024_10_SQ", fmt.Sprintf("%d_%d_%s", s.Year, s.Round, s.Kind))
}
