package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joptimus/fox-replay-system/internal/raceerr"
)

// makeLapTable builds a telemetry table with the given times and per-lap
// distances, filling the remaining channels with plausible constants.
func makeLapTable(times, dist []float64) TelemetryTable {
	n := len(times)
	tt := TelemetryTable{
		Time:        times,
		X:           make([]float64, n),
		Y:           make([]float64, n),
		Distance:    dist,
		RelDistance: make([]float64, n),
		Speed:       make([]float64, n),
		Gear:        make([]int, n),
		DRS:         make([]bool, n),
		Throttle:    make([]float64, n),
		Brake:       make([]float64, n),
		RPM:         make([]float64, n),
	}
	for i := range times {
		tt.Speed[i] = 200
		tt.Gear[i] = 5
		if dist[len(dist)-1] > 0 {
			tt.RelDistance[i] = dist[i] / dist[len(dist)-1]
		}
	}
	return tt
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestExtractDriver_NoCompletableLaps(t *testing.T) {
	t.Parallel()

	_, ok, err := ExtractDriver("VER", []LapRecord{{LapNumber: 1}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ExtractDriver("VER", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractDriver_NonMonotonicTimeIsFatal(t *testing.T) {
	t.Parallel()

	laps := []LapRecord{{
		LapNumber: 1,
		Telemetry: makeLapTable([]float64{0, 2, 1}, []float64{0, 50, 100}),
	}}
	_, _, err := ExtractDriver("HAM", laps)
	require.Error(t, err)
	assert.ErrorIs(t, err, raceerr.CorruptTelemetry)
}

func TestExtractDriver_LapBoundaryRegressionIsFatal(t *testing.T) {
	t.Parallel()

	laps := []LapRecord{
		{LapNumber: 1, Telemetry: makeLapTable([]float64{0, 5, 10}, []float64{0, 50, 100})},
		{LapNumber: 2, Telemetry: makeLapTable([]float64{9, 15, 20}, []float64{0, 50, 100})},
	}
	_, _, err := ExtractDriver("HAM", laps)
	require.Error(t, err)
	assert.ErrorIs(t, err, raceerr.CorruptTelemetry)
}

func TestExtractDriver_CumulativeRaceDistance(t *testing.T) {
	t.Parallel()

	laps := []LapRecord{
		{LapNumber: 1, Compound: "SOFT", Telemetry: makeLapTable([]float64{0, 5, 10}, []float64{0, 50, 100})},
		{LapNumber: 2, Compound: "SOFT", Telemetry: makeLapTable([]float64{10, 15, 20}, []float64{0, 50, 100})},
	}
	series, ok, err := ExtractDriver("VER", laps)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, 6, series.Len())
	assert.Equal(t, []float64{0, 50, 100, 100, 150, 200}, series.CumulativeRaceDistance)
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2}, series.LapNumber)
	for i := 1; i < series.Len(); i++ {
		assert.GreaterOrEqual(t, series.SessionTime[i], series.SessionTime[i-1])
	}
}

func TestExtractDriver_LapScalarBroadcast(t *testing.T) {
	t.Parallel()

	laps := []LapRecord{
		{
			LapNumber: 1,
			LapTime:   floatPtr(92.5),
			Sector1:   floatPtr(30.1),
			Telemetry: makeLapTable([]float64{0, 5, 10}, []float64{0, 50, 100}),
		},
		{
			// Lap 2 did not complete: scalars stay missing.
			LapNumber: 2,
			Telemetry: makeLapTable([]float64{10, 15}, []float64{0, 50}),
		},
	}
	series, ok, err := ExtractDriver("VER", laps)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 92.5, series.LapTimeS[i])
		assert.Equal(t, 30.1, series.Sector1S[i])
		assert.True(t, IsMissing(series.Sector2S[i]))
	}
	for i := 3; i < 5; i++ {
		assert.True(t, IsMissing(series.LapTimeS[i]))
	}
}

func TestExtractDriver_FinishingPositionByLap(t *testing.T) {
	t.Parallel()

	laps := []LapRecord{
		{LapNumber: 1, FinishingPosition: intPtr(3), Telemetry: makeLapTable([]float64{0, 10}, []float64{0, 100})},
		{LapNumber: 2, Telemetry: makeLapTable([]float64{10, 20}, []float64{0, 100})},
	}
	series, ok, err := ExtractDriver("NOR", laps)
	require.NoError(t, err)
	require.True(t, ok)

	pos, ok := series.FinishingPositionByLap[1]
	require.True(t, ok)
	assert.Equal(t, 3, pos)
	_, ok = series.FinishingPositionByLap[2]
	assert.False(t, ok)
}
