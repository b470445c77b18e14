package pipeline

import (
	"sort"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/leaderboard"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
	"github.com/joptimus/fox-replay-system/internal/timing"
)

// generateFrames runs the sequential per-tick pass: retirement tracking and
// leaderboard ordering both carry state across ticks, so this loop cannot be
// parallelized the way per-driver extraction is.
func generateFrames(
	drivers []string,
	channels map[string]*telemetry.ResampledDriverChannels,
	alignments map[string]*timing.Alignment,
	seriesByDriver map[string]*telemetry.DriverLapSeries,
	weatherRows []telemetry.WeatherRow,
	tl *telemetry.Timeline,
	tuning *config.TuningConfig,
	cfg *Config,
	statusIntervals []telemetry.TrackStatusInterval,
	progress ProgressFunc,
) ([]*frame.Frame, error) {
	n := tl.N()
	frames := make([]*frame.Frame, 0, n)

	retire := leaderboard.NewRetirementTracker(tuning.RetirementThreshold().Seconds())
	order := leaderboard.NewOrderer()
	deltaT := tl.DeltaT
	thetaGreen := tuning.HysteresisGreen().Seconds()
	thetaSC := tuning.HysteresisSafetyCar().Seconds()

	lookup := func(driverCode string, lapNumber int) (int, bool) {
		s, ok := seriesByDriver[driverCode]
		if !ok {
			return 0, false
		}
		pos, ok := s.FinishingPositionByLap[lapNumber]
		return pos, ok
	}

	weatherAt := newWeatherCursor(weatherRows)

	lastPct := -1.0
	for k := 0; k < n; k++ {
		t := tl.Values[k]
		statusCode := telemetry.StatusAt(statusIntervals, t)

		snapshots := make([]leaderboard.DriverSnapshot, 0, len(drivers))
		speedKmh := make(map[string]float64, len(drivers))
		raceProgress := make(map[string]float64, len(drivers))

		for _, code := range drivers {
			ch := channels[code]
			if !ch.Present[k] {
				continue
			}
			al := alignments[code]
			retired := retire.Update(code, ch.Speed[k], deltaT)
			snapshots = append(snapshots, leaderboard.DriverSnapshot{
				DriverCode:     code,
				PosRaw:         al.PosRaw[k],
				IntervalAheadS: al.IntervalAheadSmoothedS[k],
				RaceProgress:   ch.RaceProgress[k],
				LapNumber:      ch.LapNumber[k],
				Retired:        retired,
			})
			speedKmh[code] = ch.Speed[k]
			raceProgress[code] = ch.RaceProgress[k]
		}

		result := order.Order(snapshots, t, statusCode, thetaGreen, thetaSC, lookup)
		activeOrder := activePrefix(result.Order, snapshots)
		gaps := leaderboard.ComputeGaps(activeOrder, speedKmh, raceProgress)

		raceFinished := false
		if len(activeOrder) > 0 {
			leaderProgress := raceProgress[activeOrder[0]]
			raceFinished = frame.RaceFinished(leaderProgress, cfg.TotalRaceDistM, cfg.CircuitLengthM)
		}

		samples := make([]frame.DriverSample, 0, len(result.Order))
		for pos, code := range result.Order {
			ch := channels[code]
			g := gaps[code]
			retired := retire.IsRetired(code)
			status := frame.DeriveStatus(retired, raceFinished)

			drs := false
			var gapPrev, gapLeader float64
			if ch.Present[k] {
				drs = ch.DRS[k]
				gapPrev = g.ToPrevious
				gapLeader = g.ToLeader
			}

			s := frame.DriverSample{
				DriverCode:     code,
				Position:       pos + 1,
				Status:         status,
				LapTimeS:       telemetry.Missing,
				Sector1S:       telemetry.Missing,
				Sector2S:       telemetry.Missing,
				Sector3S:       telemetry.Missing,
			}
			if ch.Present[k] {
				s.X = ch.X[k]
				s.Y = ch.Y[k]
				s.Speed = ch.Speed[k]
				s.Gear = ch.Gear[k]
				s.Lap = ch.LapNumber[k]
				s.Tyre = ch.Compound[k]
				s.Throttle = ch.Throttle[k]
				s.Brake = ch.Brake[k]
				s.DRS = drs
				s.Dist = ch.Dist[k]
				s.RelDist = ch.RelDist[k]
				s.RaceProgress = ch.RaceProgress[k]
				s.GapToPreviousS = gapPrev
				s.GapToLeaderS = gapLeader
				s.LapTimeS = ch.LapTimeS[k]
				s.Sector1S = ch.Sector1S[k]
				s.Sector2S = ch.Sector2S[k]
				s.Sector3S = ch.Sector3S[k]
			}
			samples = append(samples, s)
		}

		var weather *frame.WeatherSnapshot
		if w, ok := weatherAt(t); ok {
			weather = frame.NewWeatherSnapshot(w.TrackTempC, w.AirTempC, w.HumidityPct, w.WindSpeedKph, w.WindDirection, w.RainfallMM)
		}

		frames = append(frames, frame.AssembleFrame(t-tl.TMin, samples, weather))

		if pct := 75 + 15*float64(k+1)/float64(n); pct-lastPct >= 5 || k == n-1 {
			progress(StageFrames, pct, "assembling frames")
			lastPct = pct
		}
	}

	return frames, nil
}

// activePrefix returns the leading portion of result.Order that corresponds
// to non-retired drivers, preserving ComputeGaps' rank-order contract.
func activePrefix(order []string, snapshots []leaderboard.DriverSnapshot) []string {
	retired := make(map[string]bool, len(snapshots))
	for _, s := range snapshots {
		retired[s.DriverCode] = s.Retired
	}
	out := make([]string, 0, len(order))
	for _, code := range order {
		if retired[code] {
			continue
		}
		out = append(out, code)
	}
	return out
}

func newWeatherCursor(rows []telemetry.WeatherRow) func(t float64) (telemetry.WeatherRow, bool) {
	sorted := append([]telemetry.WeatherRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	idx := 0
	return func(t float64) (telemetry.WeatherRow, bool) {
		if len(sorted) == 0 {
			return telemetry.WeatherRow{}, false
		}
		for idx < len(sorted)-1 && sorted[idx+1].Time <= t {
			idx++
		}
		if sorted[idx].Time > t {
			return telemetry.WeatherRow{}, false
		}
		return sorted[idx], true
	}
}
