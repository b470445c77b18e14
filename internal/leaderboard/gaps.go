package leaderboard

// Gap holds the two gap figures attached to a DriverFrameRecord.
type Gap struct {
	ToPrevious float64
	ToLeader   float64
}

// ComputeGaps converts distance deficits to time gaps for the active
// partition, in rank order. speedKmh and raceProgress are keyed by driver
// code. The leader's gaps are always zero.
func ComputeGaps(activeOrder []string, speedKmh, raceProgress map[string]float64) map[string]Gap {
	gaps := make(map[string]Gap, len(activeOrder))
	if len(activeOrder) == 0 {
		return gaps
	}

	leader := activeOrder[0]
	gaps[leader] = Gap{}

	leaderProgress := raceProgress[leader]
	for i := 1; i < len(activeOrder); i++ {
		cur := activeOrder[i]
		ahead := activeOrder[i-1]

		vMps := speedKmh[cur] / 3.6

		deltaPrev := raceProgress[ahead] - raceProgress[cur]
		deltaLeader := leaderProgress - raceProgress[cur]

		gaps[cur] = Gap{
			ToPrevious: gapSeconds(deltaPrev, vMps),
			ToLeader:   gapSeconds(deltaLeader, vMps),
		}
	}
	return gaps
}

func gapSeconds(deltaDist, vMps float64) float64 {
	if vMps <= 0 || deltaDist <= 0 {
		return 0
	}
	return deltaDist / vMps
}
