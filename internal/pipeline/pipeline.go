// Package pipeline is the composition root for race-frame generation: it
// wires the telemetry, timing, leaderboard, and frame packages together into
// the end-to-end flow from a raw-telemetry adapter to a finished frame list.
//
// Pipeline imports from every domain-layer package (telemetry, timing,
// leaderboard, frame, geometry) but none of those packages import pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/geometry"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
	"github.com/joptimus/fox-replay-system/internal/timing"
)

// Stage is a named progress checkpoint reported to a ProgressFunc.
type Stage string

const (
	StageInit          Stage = "init"
	StageTelemetry     Stage = "telemetry"
	StageTimelineBuild Stage = "timeline"
	StageTimingAlign   Stage = "timing"
	StageGeometry      Stage = "geometry"
	StageFrames        Stage = "frames"
)

// ProgressFunc receives stage-boundary progress updates as percent in
// [0,100]. Implementations must not block; the pipeline calls it
// synchronously on the generating goroutine.
type ProgressFunc func(stage Stage, percent float64, message string)

func noopProgress(Stage, float64, string) {}

// Metadata is everything about a generated session besides the frame list
// itself: roster facts, track status, and the detected race start.
type Metadata struct {
	DriverCodes    []string
	DriverTeams    map[string]string
	DriverNumbers  map[string]int
	DriverColors   map[string][3]uint8
	TrackStatus    []telemetry.TrackStatusInterval
	RaceStartTimeS float64
	TotalLaps      int
	Geometry       *geometry.Bundle
}

// Result is the full output of one Run: the frame list plus its metadata.
type Result struct {
	Frames   []*frame.Frame
	Metadata Metadata
}

// Config bundles every dependency Run needs. Adapter and Tuning are
// required; GeometryBuilder defaults to a no-op when nil.
type Config struct {
	Adapter         telemetry.Adapter
	DriverInfo      telemetry.DriverInfoSource // optional
	GeometryBuilder geometry.Builder           // optional
	Tuning          *config.TuningConfig
	CircuitLengthM  float64 // for race-finish epsilon
	TotalRaceDistM  float64 // 0 disables Finished detection
}

// Run executes the full race-frame generation flow for one session:
// per-driver extraction (in parallel), timeline construction, resampling,
// race-start normalization, timing alignment and smoothing, then a
// sequential per-tick pass that tracks retirements, orders the leaderboard,
// computes gaps, and assembles frames.
func Run(ctx context.Context, session telemetry.Session, cfg *Config, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = noopProgress
	}
	tuning := cfg.Tuning
	progress(StageInit, 0, "starting session load")

	codes, err := cfg.Adapter.DriverCodes(session)
	if err != nil {
		return nil, fmt.Errorf("%w: list driver codes: %v", raceerr.UpstreamUnavailable, err)
	}

	progress(StageTelemetry, 10, fmt.Sprintf("extracting telemetry for %d drivers", len(codes)))
	seriesByDriver, err := extractAll(ctx, cfg.Adapter, session, codes, tuning)
	if err != nil {
		return nil, err
	}
	if len(seriesByDriver) == 0 {
		// Surfaced verbatim to streaming clients; the exact text is part of
		// the error contract.
		return nil, errors.New("No valid telemetry data found for any driver")
	}
	progress(StageTelemetry, 60, "telemetry extraction complete")

	survivors := make([]string, 0, len(seriesByDriver))
	seriesList := make([]*telemetry.DriverLapSeries, 0, len(seriesByDriver))
	for code, s := range seriesByDriver {
		survivors = append(survivors, code)
		seriesList = append(seriesList, s)
	}
	sort.Strings(survivors)

	tl := telemetry.BuildTimeline(seriesList, tuning.SampleInterval().Seconds())
	progress(StageTimelineBuild, 60, fmt.Sprintf("timeline built: %d samples", tl.N()))

	statusRows, err := cfg.Adapter.TrackStatus(session)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch track status: %v", raceerr.UpstreamUnavailable, err)
	}
	intervals := telemetry.BuildTrackStatusIntervals(statusRows)
	tRS, kRS := telemetry.RaceStart(intervals, tl)

	channels := make(map[string]*telemetry.ResampledDriverChannels, len(survivors))
	for code, s := range seriesByDriver {
		ch := telemetry.Resample(s, tl)
		telemetry.NormalizeRaceProgress(ch, kRS)
		channels[code] = ch
	}

	timingRows, err := cfg.Adapter.StreamTiming(session)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch stream timing: %v", raceerr.UpstreamUnavailable, err)
	}
	if ok, coverage := timing.CheckCoverage(timingRows, 0.8); !ok {
		obs.Log.Warn().Float64("coverage", coverage).
			Msg("sparse stream position coverage; ordering will lean on interval and race-progress tiers")
	}
	progress(StageTimingAlign, 75, "timing data aligned")

	alignments := make(map[string]*timing.Alignment, len(survivors))
	for _, code := range survivors {
		al := timing.Align(timingRows, code, tl)
		al.IntervalAheadSmoothedS = timing.Smooth(al.IntervalAheadRawS, tuning.SGMaxWindowLength(), tuning.SGPolynomialOrder())
		alignments[code] = al
	}

	var weatherRows []telemetry.WeatherRow
	if ws, ok := cfg.Adapter.(telemetry.WeatherSource); ok {
		weatherRows, err = ws.Weather(session)
		if err != nil {
			obs.Log.Warn().Err(err).Msg("weather fetch failed; continuing without weather")
			weatherRows = nil
		}
	}

	meta := buildMetadata(cfg, session, survivors, seriesByDriver, intervals, tRS)

	progress(StageGeometry, 75, "resolving track geometry")
	meta.Geometry = buildGeometry(cfg, seriesByDriver)

	frames, err := generateFrames(survivors, channels, alignments, seriesByDriver, weatherRows, tl, tuning, cfg, intervals, progress)
	if err != nil {
		return nil, err
	}

	return &Result{Frames: frames, Metadata: meta}, nil
}

func buildMetadata(cfg *Config, session telemetry.Session, survivors []string, seriesByDriver map[string]*telemetry.DriverLapSeries, intervals []telemetry.TrackStatusInterval, tRS float64) Metadata {
	meta := Metadata{
		DriverCodes:    survivors,
		DriverTeams:    make(map[string]string, len(survivors)),
		DriverNumbers:  make(map[string]int, len(survivors)),
		DriverColors:   make(map[string][3]uint8, len(survivors)),
		TrackStatus:    intervals,
		RaceStartTimeS: tRS,
	}
	maxLap := 0
	for _, code := range survivors {
		if cfg.DriverInfo != nil {
			if info, ok := cfg.DriverInfo.DriverInfo(session, code); ok {
				meta.DriverTeams[code] = info.TeamName
				meta.DriverNumbers[code] = info.CarNumber
				meta.DriverColors[code] = info.ColorRGB
			}
		}
		s := seriesByDriver[code]
		for _, lap := range s.LapNumber {
			if lap > maxLap {
				maxLap = lap
			}
		}
	}
	meta.TotalLaps = maxLap
	return meta
}

// buildGeometry picks the fastest completed lap across survivors as the
// reference trace handed to the external geometry collaborator. Falls
// back to a no-op bundle when no builder is configured.
func buildGeometry(cfg *Config, seriesByDriver map[string]*telemetry.DriverLapSeries) *geometry.Bundle {
	builder := cfg.GeometryBuilder
	if builder == nil {
		builder = geometry.NoopBuilder{}
	}

	ref := fastestLapTrace(seriesByDriver)
	bundle, err := builder.Build(ref)
	if err != nil {
		obs.Log.Warn().Err(err).Msg("track geometry build failed; continuing without geometry")
		return &geometry.Bundle{}
	}
	return bundle
}

func fastestLapTrace(seriesByDriver map[string]*telemetry.DriverLapSeries) geometry.ReferenceLap {
	bestTime := math.Inf(1)
	var ref geometry.ReferenceLap
	for _, s := range seriesByDriver {
		lapStart := 0
		for i := 1; i <= len(s.LapNumber); i++ {
			atBoundary := i == len(s.LapNumber) || s.LapNumber[i] != s.LapNumber[lapStart]
			if !atBoundary {
				continue
			}
			lapNum := s.LapNumber[lapStart]
			lapTime := s.LapTimeS[lapStart]
			if !telemetry.IsMissing(lapTime) && lapTime < bestTime {
				bestTime = lapTime
				ref = geometry.ReferenceLap{
					X:         append([]float64(nil), s.X[lapStart:i]...),
					Y:         append([]float64(nil), s.Y[lapStart:i]...),
					LapNumber: lapNum,
				}
			}
			lapStart = i
		}
	}
	return ref
}
