// Package timing implements the timing aligner: reindexing FIA timing-tower
// data onto the shared grid and smoothing interval-to-ahead with a
// low-order polynomial filter.
package timing

import (
	"math"
	"sort"

	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// Alignment is the Timeline-aligned per-driver timing view. PosRaw uses 0
// for "absent"; downstream ordering treats pos_raw<=0 the same as absent.
type Alignment struct {
	DriverCode             string
	PosRaw                 []int
	GapToLeaderS           []float64 // NaN = absent
	IntervalAheadRawS      []float64 // NaN = absent
	IntervalAheadSmoothedS []float64 // NaN = absent; filled in by Smooth
}

// Absent is the NaN sentinel for a missing timing sample.
var Absent = math.NaN()

func isAbsent(v float64) bool { return math.IsNaN(v) }

// CheckCoverage reports whether the stream timing table carries a stream
// position for at least requiredCoverage of its rows, and the observed
// ratio. Diagnostics only: sparse timing degrades the primary ordering
// tier to its fallbacks, it never aborts a session.
func CheckCoverage(rows []telemetry.TimingRow, requiredCoverage float64) (bool, float64) {
	if len(rows) == 0 {
		return false, 0
	}
	valid := 0
	for _, r := range rows {
		if r.Position != nil {
			valid++
		}
	}
	coverage := float64(valid) / float64(len(rows))
	return coverage >= requiredCoverage, coverage
}

// Align reindexes one driver's raw timing rows onto the shared grid using
// nearest-earlier (step) sampling, matching the discrete-channel policy
// used elsewhere in the pipeline.
func Align(rows []telemetry.TimingRow, driverCode string, tl *telemetry.Timeline) *Alignment {
	var filtered []telemetry.TimingRow
	for _, r := range rows {
		if r.Driver == driverCode {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Time < filtered[j].Time })

	n := tl.N()
	out := &Alignment{
		DriverCode:        driverCode,
		PosRaw:            make([]int, n),
		GapToLeaderS:      make([]float64, n),
		IntervalAheadRawS: make([]float64, n),
	}
	for k := range out.GapToLeaderS {
		out.GapToLeaderS[k] = Absent
		out.IntervalAheadRawS[k] = Absent
	}
	if len(filtered) == 0 {
		return out
	}

	idx := 0
	for k := 0; k < n; k++ {
		qt := tl.Values[k]
		for idx < len(filtered)-1 && filtered[idx+1].Time <= qt {
			idx++
		}
		if filtered[idx].Time > qt {
			continue // before first sample: absent
		}
		row := filtered[idx]
		if row.Position != nil {
			out.PosRaw[k] = *row.Position
		}
		if row.GapToLeaderS != nil {
			out.GapToLeaderS[k] = *row.GapToLeaderS
		}
		if row.IntervalAheadS != nil {
			out.IntervalAheadRawS[k] = *row.IntervalAheadS
		}
	}
	return out
}
