package leaderboard

import (
	"math"
	"sort"
)

// DriverSnapshot is the per-driver input to one frame's ordering decision.
type DriverSnapshot struct {
	DriverCode        string
	PosRaw            int     // 0 or negative means absent (tier 1 sentinel 9999)
	IntervalAheadS    float64 // NaN means absent (tier 1.5 sentinel 9999)
	RaceProgress      float64 // NaN treated as 0 (tier 2)
	LapNumber         int     // resampled lap number, for tier 0 anchoring
	Retired           bool
}

// LapAnchorLookup resolves a driver's official finishing position for a
// given lap number, if known.
type LapAnchorLookup func(driverCode string, lapNumber int) (position int, ok bool)

// Orderer holds the cross-frame state needed for time-based hysteresis: the
// previous frame's final rank per driver and the last time each driver's
// rank was accepted to change.
type Orderer struct {
	prevRank       map[string]int // 1-based, active partition only
	lastChangeTime map[string]float64
}

// NewOrderer creates an Orderer with empty cross-frame state.
func NewOrderer() *Orderer {
	return &Orderer{prevRank: make(map[string]int), lastChangeTime: make(map[string]float64)}
}

// Result is the ordered outcome of one frame's leaderboard computation.
type Result struct {
	// Order lists driver codes: the active partition first (positions
	// 1..len(active)), then the retired partition (positions
	// len(active)+1..).
	Order []string
}

// Order computes one frame's leaderboard. t is the frame's absolute session
// time; statusCode selects the hysteresis threshold (theta); lookup resolves
// lap-anchor positions (tier 0).
func (o *Orderer) Order(snapshots []DriverSnapshot, t float64, statusCode string, thetaGreen, thetaSC float64, lookup LapAnchorLookup) Result {
	var active, retired []DriverSnapshot
	for _, s := range snapshots {
		if s.Retired {
			retired = append(retired, s)
		} else {
			active = append(active, s)
		}
	}

	candidate := candidateOrder(active)
	theta := thetaGreen
	if statusCode == "4" || statusCode == "6" || statusCode == "7" {
		theta = thetaSC
	}
	smoothed := o.applyHysteresis(candidate, t, theta)
	final := applyLapAnchor(smoothed, active, lookup)

	order := make([]string, 0, len(snapshots))
	order = append(order, final...)
	for _, s := range retired {
		order = append(order, s.DriverCode)
	}

	o.prevRank = make(map[string]int, len(final))
	for i, d := range final {
		o.prevRank[d] = i + 1
	}

	return Result{Order: order}
}

// candidateOrder implements tiers 1, 1.5, and 2.
func candidateOrder(active []DriverSnapshot) []string {
	sorted := append([]DriverSnapshot(nil), active...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ka1, kb1 := tier1Key(a.PosRaw), tier1Key(b.PosRaw)
		if ka1 != kb1 {
			return ka1 < kb1
		}
		ka15, kb15 := tier15Key(a.IntervalAheadS), tier15Key(b.IntervalAheadS)
		if ka15 != kb15 {
			return ka15 < kb15
		}
		pa, pb := tier2Progress(a.RaceProgress), tier2Progress(b.RaceProgress)
		return pa > pb // descending race progress
	})
	codes := make([]string, len(sorted))
	for i, s := range sorted {
		codes[i] = s.DriverCode
	}
	return codes
}

func tier1Key(posRaw int) int {
	if posRaw > 0 {
		return posRaw
	}
	return 9999
}

func tier15Key(interval float64) float64 {
	if math.IsNaN(interval) {
		return 9999
	}
	return interval
}

func tier2Progress(progress float64) float64 {
	if math.IsNaN(progress) {
		return 0
	}
	return progress
}

// applyHysteresis implements tier 3: a rank change only takes effect once
// theta seconds have elapsed since the driver's last accepted change.
func (o *Orderer) applyHysteresis(candidate []string, t, theta float64) []string {
	n := len(candidate)
	candidateRank := make(map[string]int, n)
	for i, d := range candidate {
		candidateRank[d] = i + 1
	}

	slots := make([]string, n)
	occupied := make([]bool, n)
	accepted := make(map[string]bool, n)

	for _, d := range candidate {
		prev, hasPrev := o.prevRank[d]
		if !hasPrev {
			continue // new driver: handled in the fill pass below
		}
		if prev < 1 || prev > n {
			continue // stale rank from a different active-set size
		}
		cur := candidateRank[d]
		if cur == prev {
			if !occupied[prev-1] {
				slots[prev-1] = d
				occupied[prev-1] = true
			}
			continue
		}
		last, seen := o.lastChangeTime[d]
		if seen && t-last < theta {
			if !occupied[prev-1] {
				slots[prev-1] = d
				occupied[prev-1] = true
			}
			continue
		}
		accepted[d] = true
	}

	// Fill remaining slots, in candidate order, with drivers not yet
	// placed (new drivers plus accepted rank changes).
	next := 0
	for _, d := range candidate {
		if isPlaced(slots, d) {
			continue
		}
		for next < n && occupied[next] {
			next++
		}
		if next >= n {
			break
		}
		slots[next] = d
		occupied[next] = true
		if o.lastChangeTime == nil {
			o.lastChangeTime = make(map[string]float64)
		}
		o.lastChangeTime[d] = t
		next++
	}

	return slots
}

func isPlaced(slots []string, d string) bool {
	for _, s := range slots {
		if s == d {
			return true
		}
	}
	return false
}

// applyLapAnchor implements tier 0: anchored drivers snap to their
// official finishing-lap position; unanchored drivers keep their smoothed
// relative order among the remaining slots.
func applyLapAnchor(smoothed []string, active []DriverSnapshot, lookup LapAnchorLookup) []string {
	n := len(smoothed)
	final := make([]string, n)
	occupied := make([]bool, n)

	lapOf := make(map[string]int, len(active))
	for _, s := range active {
		lapOf[s.DriverCode] = s.LapNumber
	}

	var unanchored []string
	if lookup == nil {
		unanchored = smoothed
	} else {
		for _, d := range smoothed {
			pos, ok := lookup(d, lapOf[d])
			if ok && pos >= 1 && pos <= n && !occupied[pos-1] {
				final[pos-1] = d
				occupied[pos-1] = true
			} else {
				unanchored = append(unanchored, d)
			}
		}
	}

	next := 0
	for _, d := range unanchored {
		for next < n && occupied[next] {
			next++
		}
		if next >= n {
			break
		}
		final[next] = d
		occupied[next] = true
		next++
	}
	return final
}
