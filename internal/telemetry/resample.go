package telemetry

// Resample aligns one driver's series onto the shared Timeline, applying
// the per-channel resampling policy:
//   - continuous channels: piecewise-linear interpolation; not produced
//     outside the driver's own span
//   - discrete channels: step sampling (nearest-earlier value)
//   - lap/sector scalars: piecewise-linear interpolation with Missing
//     propagated at the ends
func Resample(series *DriverLapSeries, tl *Timeline) *ResampledDriverChannels {
	n := tl.N()
	out := &ResampledDriverChannels{
		DriverCode:   series.DriverCode,
		Present:      make([]bool, n),
		X:            make([]float64, n),
		Y:            make([]float64, n),
		Speed:        make([]float64, n),
		Throttle:     make([]float64, n),
		Brake:        make([]float64, n),
		RPM:          make([]float64, n),
		Gear:         make([]int, n),
		DRS:          make([]bool, n),
		LapNumber:    make([]int, n),
		Compound:     make([]string, n),
		Dist:         make([]float64, n),
		RelDist:      make([]float64, n),
		RaceProgress: make([]float64, n),
		LapTimeS:     make([]float64, n),
		Sector1S:     make([]float64, n),
		Sector2S:     make([]float64, n),
		Sector3S:     make([]float64, n),
	}
	if series.Len() == 0 {
		return out
	}

	t := series.SessionTime
	lo, hi := t[0], t[len(t)-1]

	// lin tracks a cursor into the source series for linear interpolation;
	// step tracks one for step sampling. Both advance monotonically since
	// both the grid and the source series are non-decreasing in time.
	lin := newInterpCursor(t)
	step := newStepCursor(t)

	for k, qt := range tl.Values {
		if qt < lo || qt > hi {
			continue
		}
		out.Present[k] = true

		i0, i1, frac := lin.locate(qt)
		out.X[k] = lerp(series.X[i0], series.X[i1], frac)
		out.Y[k] = lerp(series.Y[i0], series.Y[i1], frac)
		out.Speed[k] = lerp(series.Speed[i0], series.Speed[i1], frac)
		out.Throttle[k] = lerp(series.Throttle[i0], series.Throttle[i1], frac)
		out.Brake[k] = lerp(series.Brake[i0], series.Brake[i1], frac)
		out.RPM[k] = lerp(series.RPM[i0], series.RPM[i1], frac)
		out.Dist[k] = lerp(series.LapDist[i0], series.LapDist[i1], frac)
		out.RelDist[k] = lerp(series.RelDist[i0], series.RelDist[i1], frac)
		out.RaceProgress[k] = lerp(series.CumulativeRaceDistance[i0], series.CumulativeRaceDistance[i1], frac)
		out.LapTimeS[k] = lerpMissing(series.LapTimeS[i0], series.LapTimeS[i1], frac)
		out.Sector1S[k] = lerpMissing(series.Sector1S[i0], series.Sector1S[i1], frac)
		out.Sector2S[k] = lerpMissing(series.Sector2S[i0], series.Sector2S[i1], frac)
		out.Sector3S[k] = lerpMissing(series.Sector3S[i0], series.Sector3S[i1], frac)

		si := step.locate(qt)
		out.Gear[k] = int(roundNearest(float64(series.Gear[si])))
		out.DRS[k] = series.DRS[si]
		out.LapNumber[k] = series.LapNumber[si]
		out.Compound[k] = series.Compound[si]
	}

	return out
}

func lerp(a, b, frac float64) float64 {
	return a + (b-a)*frac
}

// lerpMissing interpolates lap/sector scalars, propagating Missing when
// either endpoint is missing (a lap that did not complete stays missing
// across its own samples and the boundary with it).
func lerpMissing(a, b, frac float64) float64 {
	if IsMissing(a) || IsMissing(b) {
		if frac <= 0 {
			return a
		}
		if frac >= 1 {
			return b
		}
		return Missing
	}
	return lerp(a, b, frac)
}

func roundNearest(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return float64(int(v - 0.5))
}

// interpCursor finds, for a monotonically advancing query time, the
// bracketing pair of source indices and the interpolation fraction.
type interpCursor struct {
	t   []float64
	idx int
}

func newInterpCursor(t []float64) *interpCursor { return &interpCursor{t: t} }

func (c *interpCursor) locate(qt float64) (i0, i1 int, frac float64) {
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

// stepCursor returns the index of the nearest-earlier sample.
type stepCursor struct {
	t   []float64
	idx int
}

func newStepCursor(t []float64) *stepCursor { return &stepCursor{t: t} }

func (c *stepCursor) locate(qt float64) int {
	n := len(c.t)
	for c.idx < n-1 && c.t[c.idx+1] <= qt {
		c.idx++
	}
	return c.idx
}
