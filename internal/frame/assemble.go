package frame

import "math"

// DriverSample is the flattened per-driver input to AssembleFrame: every
// value the pipeline has already computed for one driver at one grid
// index, including its final leaderboard position and gaps. Lap/sector
// scalars use NaN for "missing" (see telemetry.Missing).
type DriverSample struct {
	DriverCode     string
	X, Y           float64
	Speed          float64
	Gear           int
	Lap            int
	Tyre           string
	Throttle       float64
	Brake          float64
	DRS            bool
	Dist           float64
	RelDist        float64
	RaceProgress   float64
	GapToPreviousS float64
	GapToLeaderS   float64
	LapTimeS       float64 // NaN = missing
	Sector1S       float64 // NaN = missing
	Sector2S       float64 // NaN = missing
	Sector3S       float64 // NaN = missing
	Position       int
	Status         Status
}

// AssembleFrame materializes one Frame from its already-ordered driver
// samples: sanitize floats, attach weather, and set leader_lap from the
// rank-1 driver's integer lap.
func AssembleFrame(ts float64, samples []DriverSample, weather *WeatherSnapshot) *Frame {
	drivers := make(map[string]*DriverFrameRecord, len(samples))
	leaderLap := 0

	for _, s := range samples {
		rec := &DriverFrameRecord{
			X:              s.X,
			Y:              s.Y,
			Speed:          s.Speed,
			Gear:           s.Gear,
			Lap:            s.Lap,
			Position:       s.Position,
			Tyre:           s.Tyre,
			Throttle:       s.Throttle,
			Brake:          s.Brake,
			DRS:            s.DRS,
			Dist:           s.Dist,
			RelDist:        s.RelDist,
			RaceProgress:   s.RaceProgress,
			GapToPreviousS: s.GapToPreviousS,
			GapToLeaderS:   s.GapToLeaderS,
			Status:         s.Status,
		}
		if !math.IsNaN(s.LapTimeS) {
			v := s.LapTimeS
			rec.LapTimeS = &v
		}
		if !math.IsNaN(s.Sector1S) {
			v := s.Sector1S
			rec.Sector1S = &v
		}
		if !math.IsNaN(s.Sector2S) {
			v := s.Sector2S
			rec.Sector2S = &v
		}
		if !math.IsNaN(s.Sector3S) {
			v := s.Sector3S
			rec.Sector3S = &v
		}
		SanitizeRecord(rec)
		drivers[s.DriverCode] = rec

		if s.Position == 1 {
			leaderLap = s.Lap
		}
	}

	return &Frame{
		TS:        round3(ts),
		LeaderLap: leaderLap,
		Drivers:   drivers,
		Weather:   weather,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
