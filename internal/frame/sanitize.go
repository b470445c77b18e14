package frame

import "math"

const float64SaneBound = 1e308

// Sanitize reduces a floating-point field to a finite value in
// [-1e308, 1e308], replacing NaN or out-of-range values with 0.
func Sanitize(v float64) float64 {
	if math.IsNaN(v) || math.Abs(v) > float64SaneBound {
		return 0
	}
	return v
}

// SanitizeRecord sanitizes every float64 field of a DriverFrameRecord in
// place.
func SanitizeRecord(r *DriverFrameRecord) {
	r.X = Sanitize(r.X)
	r.Y = Sanitize(r.Y)
	r.Speed = Sanitize(r.Speed)
	r.Throttle = Sanitize(r.Throttle)
	r.Brake = Sanitize(r.Brake)
	r.Dist = Sanitize(r.Dist)
	r.RelDist = Sanitize(r.RelDist)
	r.RaceProgress = Sanitize(r.RaceProgress)
	r.GapToPreviousS = Sanitize(r.GapToPreviousS)
	r.GapToLeaderS = Sanitize(r.GapToLeaderS)
	if r.LapTimeS != nil {
		v := Sanitize(*r.LapTimeS)
		r.LapTimeS = &v
	}
	if r.Sector1S != nil {
		v := Sanitize(*r.Sector1S)
		r.Sector1S = &v
	}
	if r.Sector2S != nil {
		v := Sanitize(*r.Sector2S)
		r.Sector2S = &v
	}
	if r.Sector3S != nil {
		v := Sanitize(*r.Sector3S)
		r.Sector3S = &v
	}
}
