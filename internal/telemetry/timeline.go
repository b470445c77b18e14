package telemetry

import "math"

// BuildTimeline establishes the uniform Δt-spaced grid spanning the union
// of every driver's first/last session-time.
func BuildTimeline(series []*DriverLapSeries, deltaT float64) *Timeline {
	tMin := math.Inf(1)
	tMax := math.Inf(-1)
	for _, s := range series {
		if s.Len() == 0 {
			continue
		}
		if t := s.FirstTime(); t < tMin {
			tMin = t
		}
		if t := s.LastTime(); t > tMax {
			tMax = t
		}
	}
	if math.IsInf(tMin, 1) {
		return &Timeline{DeltaT: deltaT, TMin: 0, TMax: 0, Values: nil}
	}

	n := int(math.Floor((tMax - tMin) / deltaT))
	values := make([]float64, n)
	for k := 0; k < n; k++ {
		values[k] = tMin + float64(k)*deltaT
	}
	return &Timeline{DeltaT: deltaT, TMin: tMin, TMax: tMax, Values: values}
}
