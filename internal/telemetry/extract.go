package telemetry

import (
	"fmt"

	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
)

// ExtractDriver builds a DriverLapSeries for one driver from its laps. It
// returns (series, ok, err):
//   - ok=false, err=nil  — driver has no completable laps; omit (not an error)
//   - err!=nil           — a lap's time sequence is non-monotonic; fatal for
//     this driver only, the caller must skip it and continue the pipeline
func ExtractDriver(driverCode string, laps []LapRecord) (*DriverLapSeries, bool, error) {
	completable := laps[:0:0]
	for _, lap := range laps {
		if lap.Telemetry.Len() > 0 {
			completable = append(completable, lap)
		}
	}
	if len(completable) == 0 {
		return nil, false, nil
	}

	series := &DriverLapSeries{
		DriverCode:             driverCode,
		FinishingPositionByLap: make(map[int]int),
	}

	var lastTime = -1.0
	var cumDist float64
	firstLapSeen := false

	for _, lap := range completable {
		tt := lap.Telemetry
		n := tt.Len()

		if n > 0 && tt.Time[0] < lastTime {
			return nil, false, fmt.Errorf("%w: driver %s lap %d time %.3f precedes prior sample %.3f",
				raceerr.CorruptTelemetry, driverCode, lap.LapNumber, tt.Time[0], lastTime)
		}
		for i := 1; i < n; i++ {
			if tt.Time[i] < tt.Time[i-1] {
				return nil, false, fmt.Errorf("%w: driver %s lap %d non-monotonic time at sample %d",
					raceerr.CorruptTelemetry, driverCode, lap.LapNumber, i)
			}
		}

		if !firstLapSeen && n > 0 && tt.Distance[0] > 100 {
			obs.Log.Warn().Str("driver", driverCode).Float64("first_lap_dist", tt.Distance[0]).
				Msg("first lap distance sample exceeds 100m")
		}
		firstLapSeen = true

		lapTimeVal := valueOrMissing(lap.LapTime)
		s1Val := valueOrMissing(lap.Sector1)
		s2Val := valueOrMissing(lap.Sector2)
		s3Val := valueOrMissing(lap.Sector3)

		var lapDistDelta float64
		if n > 0 {
			lapDistDelta = tt.Distance[n-1] - tt.Distance[0]
		}

		for i := 0; i < n; i++ {
			series.SessionTime = append(series.SessionTime, tt.Time[i])
			series.X = append(series.X, tt.X[i])
			series.Y = append(series.Y, tt.Y[i])
			series.LapDist = append(series.LapDist, tt.Distance[i])
			series.RelDist = append(series.RelDist, tt.RelDistance[i])
			series.LapNumber = append(series.LapNumber, lap.LapNumber)
			series.Compound = append(series.Compound, lap.Compound)
			series.Speed = append(series.Speed, tt.Speed[i])
			series.Gear = append(series.Gear, tt.Gear[i])
			series.DRS = append(series.DRS, tt.DRS[i])
			series.Throttle = append(series.Throttle, tt.Throttle[i])
			series.Brake = append(series.Brake, tt.Brake[i])
			series.RPM = append(series.RPM, tt.RPM[i])
			series.LapTimeS = append(series.LapTimeS, lapTimeVal)
			series.Sector1S = append(series.Sector1S, s1Val)
			series.Sector2S = append(series.Sector2S, s2Val)
			series.Sector3S = append(series.Sector3S, s3Val)
			// CumulativeRaceDistance accumulates per-lap deltas; within a
			// lap it tracks the lap's own distance progress.
			series.CumulativeRaceDistance = append(series.CumulativeRaceDistance, cumDist+(tt.Distance[i]-tt.Distance[0]))
		}
		cumDist += lapDistDelta

		if lap.FinishingPosition != nil {
			series.FinishingPositionByLap[lap.LapNumber] = *lap.FinishingPosition
		}
		if n > 0 {
			lastTime = tt.Time[n-1]
		}
	}

	return series, true, nil
}

func valueOrMissing(v *float64) float64 {
	if v == nil {
		return Missing
	}
	return *v
}
