package qualifying

import (
	"math"

	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// bestLap picks the fastest lap with a known lap time and non-empty
// telemetry. Returns ok=false if no lap qualifies.
func bestLap(laps []telemetry.LapRecord) (telemetry.LapRecord, bool) {
	best := -1
	bestTime := math.Inf(1)
	for i, lap := range laps {
		if lap.LapTime == nil || lap.Telemetry.Len() == 0 {
			continue
		}
		if *lap.LapTime < bestTime {
			bestTime = *lap.LapTime
			best = i
		}
	}
	if best < 0 {
		return telemetry.LapRecord{}, false
	}
	return laps[best], true
}

// buildTrace resamples lap's telemetry onto a Δt-spaced grid spanning the
// lap's own time span, detects DRS zones, and overwrites the last sample's
// timestamp with the official lap time.
func buildTrace(driverCode, segment string, lap telemetry.LapRecord, deltaT float64) *LapTrace {
	tt := lap.Telemetry
	n := tt.Len()
	t0, t1 := tt.Time[0], tt.Time[n-1]

	steps := int(math.Floor((t1-t0)/deltaT)) + 1
	if steps < 1 {
		steps = 1
	}

	cur := newCursor(tt.Time)

	samples := make([]Sample, 0, steps)
	for k := 0; k < steps; k++ {
		qt := t0 + float64(k)*deltaT
		if qt > t1 {
			qt = t1
		}

		// i0 doubles as the step-sampled (nearest-earlier) index: cursor
		// advance is identical whether used for interpolation or stepping.
		i0, i1, frac := cur.locate(qt)

		samples = append(samples, Sample{
			TimeS:    qt,
			X:        lerp(tt.X[i0], tt.X[i1], frac),
			Y:        lerp(tt.Y[i0], tt.Y[i1], frac),
			Speed:    lerp(tt.Speed[i0], tt.Speed[i1], frac),
			Throttle: lerp(tt.Throttle[i0], tt.Throttle[i1], frac),
			Brake:    lerp(tt.Brake[i0], tt.Brake[i1], frac),
			Dist:     lerp(tt.Distance[i0], tt.Distance[i1], frac),
			RelDist:  lerp(tt.RelDistance[i0], tt.RelDistance[i1], frac),
			Gear:     tt.Gear[i0],
			DRS:      tt.DRS[i0],
		})
	}

	if lapTime := lap.LapTime; lapTime != nil && len(samples) > 0 {
		samples[len(samples)-1].TimeS = *lapTime
	}

	return &LapTrace{
		DriverCode: driverCode,
		Segment:    segment,
		LapTimeS:   valueOr(lap.LapTime, math.NaN()),
		Samples:    samples,
		DRSZones:   detectDRSZones(samples),
	}
}

// detectDRSZones finds rising/falling edges of the DRS-active flag across
// the resampled samples, recording the per-lap distance at each edge. The
// source telemetry's raw DRS channel is already collapsed to "active at or
// above the car's deployment threshold" upstream, so a transition from
// false to true here is exactly the rising edge the threshold crossing
// describes.
func detectDRSZones(samples []Sample) []DRSZone {
	var zones []DRSZone
	open := false
	var start float64

	for _, s := range samples {
		switch {
		case s.DRS && !open:
			open = true
			start = s.Dist
		case !s.DRS && open:
			open = false
			zones = append(zones, DRSZone{ZoneStart: start, ZoneEnd: s.Dist})
		}
	}
	if open && len(samples) > 0 {
		zones = append(zones, DRSZone{ZoneStart: start, ZoneEnd: samples[len(samples)-1].Dist})
	}
	return zones
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func lerp(a, b, frac float64) float64 { return a + (b-a)*frac }

// cursor locates the bracketing pair (for linear interpolation) or the
// nearest-earlier index (for step sampling) for a monotonically advancing
// query time into a fixed source array.
type cursor struct {
	t   []float64
	idx int
}

func newCursor(t []float64) *cursor { return &cursor{t: t} }

func (c *cursor) locate(qt float64) (i0, i1 int, frac float64) {
	n := len(c.t)
	for c.idx < n-1 && c.t[c.idx+1] <= qt {
		c.idx++
	}
	i0 = c.idx
	i1 = i0
	if i0 < n-1 {
		i1 = i0 + 1
	}
	if c.t[i1] == c.t[i0] {
		return i0, i1, 0
	}
	frac = (qt - c.t[i0]) / (c.t[i1] - c.t[i0])
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return i0, i1, frac
}
