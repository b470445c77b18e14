// Package leaderboard implements the retirement tracker and the 4-tier
// leaderboard orderer with time-based hysteresis and lap-anchor correction.
package leaderboard

// RetirementTracker maintains each driver's running zero-speed duration and
// sticky retired flag.
type RetirementTracker struct {
	threshold float64 // seconds
	state     map[string]*retirementState
}

type retirementState struct {
	zeroSpeedDurationS float64
	retired            bool
}

// NewRetirementTracker creates a tracker with the given threshold in
// seconds (10s of continuous zero speed, by convention).
func NewRetirementTracker(thresholdSecs float64) *RetirementTracker {
	return &RetirementTracker{threshold: thresholdSecs, state: make(map[string]*retirementState)}
}

// Update advances one driver's counter by deltaT given its current speed,
// and returns whether the driver is (now) retired. Retirement is sticky:
// once set it never clears, even if speed becomes positive again.
func (rt *RetirementTracker) Update(driverCode string, speed, deltaT float64) bool {
	s, ok := rt.state[driverCode]
	if !ok {
		s = &retirementState{}
		rt.state[driverCode] = s
	}
	if s.retired {
		return true
	}
	if speed == 0 {
		s.zeroSpeedDurationS += deltaT
		if s.zeroSpeedDurationS >= rt.threshold {
			s.retired = true
		}
	} else {
		s.zeroSpeedDurationS = 0
	}
	return s.retired
}

// IsRetired reports the current retired flag without advancing state.
func (rt *RetirementTracker) IsRetired(driverCode string) bool {
	s, ok := rt.state[driverCode]
	return ok && s.retired
}
