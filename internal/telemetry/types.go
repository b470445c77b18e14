// Package telemetry implements the per-driver extraction, timeline
// construction, and resampling stages of the race-frame pipeline. It
// consumes the upstream telemetry adapter and produces
// ResampledDriverChannels aligned to a common Timeline.
package telemetry

import "math"

// Missing is the sentinel value used for lap/sector scalars that did not
// complete. Propagated through interpolation.
var Missing = math.NaN()

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// DriverLapSeries holds one driver's laps flattened into time-sorted
// parallel arrays. SessionTime is non-decreasing; duplicates are
// permitted only at lap boundaries.
type DriverLapSeries struct {
	DriverCode string

	SessionTime []float64 // s, non-decreasing
	X           []float64
	Y           []float64
	LapDist     []float64 // per-lap distance, m
	RelDist     []float64 // in [0,1]
	LapNumber   []int
	Compound    []string
	Speed       []float64 // km/h
	Gear        []int
	DRS         []bool
	Throttle    []float64 // 0-100
	Brake       []float64 // 0-100
	RPM         []float64

	// Lap/sector scalars broadcast across every sample of their lap.
	// Missing propagates as Missing (NaN) for laps that did not complete.
	LapTimeS []float64
	Sector1S []float64
	Sector2S []float64
	Sector3S []float64

	// CumulativeRaceDistance is metres travelled since the driver's first
	// sample; computed in extract.go. racestart.go shifts the resampled
	// RaceProgress channel, not this series, to the detected race start.
	CumulativeRaceDistance []float64

	// FinishingPositionByLap maps a completed lap number to the driver's
	// official finishing position for that lap (lap-anchor data for
	// leaderboard ordering). Absent laps are simply not present in the map.
	FinishingPositionByLap map[int]int
}

// Len returns the number of samples in the series.
func (d *DriverLapSeries) Len() int { return len(d.SessionTime) }

// FirstTime and LastTime return the series' time span. Both panic on an
// empty series; callers must check Len() > 0 first.
func (d *DriverLapSeries) FirstTime() float64 { return d.SessionTime[0] }
func (d *DriverLapSeries) LastTime() float64  { return d.SessionTime[len(d.SessionTime)-1] }

// Timeline is the uniform Δt = 1/25s sample grid shared by every driver.
// Values are absolute session-time seconds; Relative below gives the
// relative-seconds view handed to downstream components.
type Timeline struct {
	DeltaT float64
	TMin   float64
	TMax   float64
	Values []float64 // absolute seconds, T_k = TMin + k*DeltaT
}

// N returns the number of grid points.
func (t *Timeline) N() int { return len(t.Values) }

// Relative returns timeline_rel = T - t_min.
func (t *Timeline) Relative() []float64 {
	rel := make([]float64, len(t.Values))
	for i, v := range t.Values {
		rel[i] = v - t.TMin
	}
	return rel
}

// ResampledDriverChannels holds one array per channel, length N, aligned to
// a Timeline.
type ResampledDriverChannels struct {
	DriverCode string

	// Present[k] is false where the sample falls outside the driver's own
	// span: continuous channels are not produced outside it.
	Present []bool

	X, Y           []float64
	Speed          []float64
	Throttle       []float64
	Brake          []float64
	RPM            []float64
	Gear           []int
	DRS            []bool
	LapNumber      []int
	Compound       []string
	Dist           []float64
	RelDist        []float64
	RaceProgress   []float64 // CumulativeRaceDistance resampled + race-start normalized

	LapTimeS []float64
	Sector1S []float64
	Sector2S []float64
	Sector3S []float64
}
