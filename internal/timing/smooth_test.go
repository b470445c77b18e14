package timing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

func TestSmooth_QuadraticReproducedExactly(t *testing.T) {
	t.Parallel()

	// An order-2 filter fits a quadratic exactly, so the signal passes
	// through unchanged.
	raw := make([]float64, 20)
	for i := range raw {
		x := float64(i)
		raw[i] = 0.5*x*x - 3*x + 7
	}
	out := Smooth(raw, 7, 2)
	require.Len(t, out, len(raw))
	for i := range raw {
		assert.InDelta(t, raw[i], out[i], 1e-9)
	}
}

func TestSmooth_Idempotent(t *testing.T) {
	t.Parallel()

	raw := make([]float64, 30)
	for i := range raw {
		x := float64(i)
		raw[i] = 2*x*x + x
	}
	once := Smooth(raw, 7, 2)
	twice := Smooth(once, 7, 2)
	for i := range once {
		assert.InDelta(t, once[i], twice[i], 1e-9)
	}
}

func TestSmooth_MissingSamplesStayMissing(t *testing.T) {
	t.Parallel()

	raw := []float64{1, Absent, 2, 3, Absent, 4, 5, 6, 7, 8}
	out := Smooth(raw, 7, 2)
	assert.True(t, math.IsNaN(out[1]))
	assert.True(t, math.IsNaN(out[4]))
	for i, v := range raw {
		if !math.IsNaN(v) {
			assert.False(t, math.IsNaN(out[i]), "index %d", i)
		}
	}
}

func TestSmooth_TooFewPointsPassesThrough(t *testing.T) {
	t.Parallel()

	raw := []float64{1.5, 2.5}
	out := Smooth(raw, 7, 2)
	assert.Equal(t, raw, out)

	out = Smooth(nil, 7, 2)
	assert.Empty(t, out)
}

func TestAlign_StepReindexing(t *testing.T) {
	t.Parallel()

	p2, p3 := 2, 3
	g1, g2 := 1.5, 2.0
	rows := []telemetry.TimingRow{
		{Time: 1.0, Driver: "VER", Position: &p2, GapToLeaderS: &g1},
		{Time: 3.0, Driver: "VER", Position: &p3, GapToLeaderS: &g2},
		{Time: 1.0, Driver: "HAM", Position: &p3},
	}
	tl := &telemetry.Timeline{DeltaT: 1, TMin: 0, TMax: 4, Values: []float64{0, 1, 2, 3}}

	al := Align(rows, "VER", tl)

	// Before the first sample: absent.
	assert.Equal(t, 0, al.PosRaw[0])
	assert.True(t, math.IsNaN(al.GapToLeaderS[0]))

	assert.Equal(t, 2, al.PosRaw[1])
	assert.Equal(t, 2, al.PosRaw[2]) // held until the next sample
	assert.Equal(t, 3, al.PosRaw[3])
	assert.Equal(t, 1.5, al.GapToLeaderS[2])
	assert.Equal(t, 2.0, al.GapToLeaderS[3])
}

func TestCheckCoverage(t *testing.T) {
	t.Parallel()

	p := 1
	rows := []telemetry.TimingRow{
		{Time: 0, Driver: "VER", Position: &p},
		{Time: 1, Driver: "VER", Position: &p},
		{Time: 2, Driver: "VER", Position: &p},
		{Time: 3, Driver: "VER"},
	}
	ok, coverage := CheckCoverage(rows, 0.8)
	assert.False(t, ok)
	assert.InDelta(t, 0.75, coverage, 1e-9)

	ok, coverage = CheckCoverage(rows, 0.5)
	assert.True(t, ok)
	assert.InDelta(t, 0.75, coverage, 1e-9)

	ok, coverage = CheckCoverage(nil, 0.8)
	assert.False(t, ok)
	assert.Equal(t, 0.0, coverage)
}

func TestAlign_NoRowsForDriver(t *testing.T) {
	t.Parallel()

	tl := &telemetry.Timeline{DeltaT: 1, TMin: 0, TMax: 2, Values: []float64{0, 1}}
	al := Align(nil, "VER", tl)
	for k := range al.PosRaw {
		assert.Equal(t, 0, al.PosRaw[k])
		assert.True(t, math.IsNaN(al.IntervalAheadRawS[k]))
	}
}
