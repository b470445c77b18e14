package telemetry

import "sort"

// TrackStatusInterval is one run of a constant status code. Starts form a
// non-decreasing sequence; each interval's end equals
// the next interval's start; the last interval is open-ended (EndS is the
// sentinel positiveInfinity (1e18) in that case — callers should treat it as "still
// current" rather than dereference it as a real bound).
type TrackStatusInterval struct {
	StatusCode string
	StartS     float64
	EndS       float64
}

// BuildTrackStatusIntervals converts raw (time, status_code) samples into
// the interval form, de-duplicating consecutive equal codes.
func BuildTrackStatusIntervals(rows []TrackStatusRow) []TrackStatusInterval {
	if len(rows) == 0 {
		return nil
	}
	sorted := append([]TrackStatusRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var intervals []TrackStatusInterval
	for _, r := range sorted {
		if len(intervals) > 0 && intervals[len(intervals)-1].StatusCode == r.StatusCode {
			continue
		}
		intervals = append(intervals, TrackStatusInterval{StatusCode: r.StatusCode, StartS: r.Time})
	}
	for i := 0; i < len(intervals)-1; i++ {
		intervals[i].EndS = intervals[i+1].StartS
	}
	if n := len(intervals); n > 0 {
		intervals[n-1].EndS = positiveInfinity
	}
	return intervals
}

const positiveInfinity = 1e18

// StatusAt locates the unique interval containing absolute time t. Returns
// "" if t precedes the first interval.
func StatusAt(intervals []TrackStatusInterval, t float64) string {
	for _, iv := range intervals {
		if t >= iv.StartS && t < iv.EndS {
			return iv.StatusCode
		}
	}
	if n := len(intervals); n > 0 && t >= intervals[n-1].StartS {
		return intervals[n-1].StatusCode
	}
	return ""
}
