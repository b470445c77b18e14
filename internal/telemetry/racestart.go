package telemetry

import "math"

// RaceStart computes the race-start index k_RS: the grid index nearest the
// absolute time of the first track-status interval with code "1" after the
// session begins. If no such interval exists, k_RS is 0.
func RaceStart(intervals []TrackStatusInterval, tl *Timeline) (tRS float64, kRS int) {
	for _, iv := range intervals {
		if iv.StatusCode == "1" {
			tRS = iv.StartS
			kRS = nearestGridIndex(tl, tRS)
			return tRS, kRS
		}
	}
	return tl.TMin, 0
}

func nearestGridIndex(tl *Timeline, t float64) int {
	if tl.N() == 0 {
		return 0
	}
	best := 0
	bestDist := math.Abs(tl.Values[0] - t)
	for k := 1; k < tl.N(); k++ {
		d := math.Abs(tl.Values[k] - t)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}
	return best
}

// NormalizeRaceProgress shifts a driver's resampled race-progress series so
// its value at kRS is 0, and clamps it at 0 for indices before kRS. It
// mutates channels.RaceProgress in place.
func NormalizeRaceProgress(channels *ResampledDriverChannels, kRS int) {
	rp := channels.RaceProgress
	if len(rp) == 0 {
		return
	}
	if kRS >= len(rp) {
		kRS = len(rp) - 1
	}
	offset := rp[kRS]
	for k := range rp {
		rp[k] -= offset
		if k < kRS || rp[k] < 0 {
			rp[k] = 0
		}
	}
}
