package qualifying

import (
	"context"
	"sync"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// job is one (driver, segment) extraction unit.
type job struct {
	driverCode string
	segment    string
}

// BuildCatalog extracts the fastest-lap trace for every (driver, segment)
// pair across a worker pool, mirroring the race pipeline's per-driver
// extraction fan-out. A segment is queried by requesting that segment's
// own telemetry.Session (same year/round, Kind set to the segment label)
// from the adapter; a (driver, segment) pair with no completable lap, or
// whose fetch fails, is simply omitted from the catalog rather than
// failing the whole extraction.
func BuildCatalog(ctx context.Context, adapter telemetry.LapSource, base telemetry.Session, driverCodes []string, segments []string, tuning *config.TuningConfig) *Catalog {
	jobs := make([]job, 0, len(driverCodes)*len(segments))
	for _, code := range driverCodes {
		for _, seg := range segments {
			jobs = append(jobs, job{driverCode: code, segment: seg})
		}
	}

	n := len(jobs)
	catalog := &Catalog{}
	if n == 0 {
		return catalog
	}

	workers := tuning.ExtractionWorkerCount(n)
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	type outcome struct {
		job   job
		trace *LapTrace
	}
	results := make([]outcome, n)
	jobCh := make(chan int, n)
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)

	dt := 1.0 / tuning.SampleRate()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if ctx.Err() != nil {
					return
				}
				j := jobs[i]
				results[i] = outcome{job: j, trace: extractOne(adapter, base, j, dt)}
			}
		}()
	}
	wg.Wait()

	for _, r := range results {
		if r.trace == nil {
			continue
		}
		catalog.set(r.job.driverCode, r.job.segment, r.trace)
	}
	return catalog
}

func extractOne(adapter telemetry.LapSource, base telemetry.Session, j job, deltaT float64) *LapTrace {
	session := base
	session.Kind = j.segment

	laps, err := adapter.Laps(session, j.driverCode)
	if err != nil {
		obs.Log.Warn().Err(err).Str("driver", j.driverCode).Str("segment", j.segment).
			Msg("qualifying lap fetch failed; omitting segment")
		return nil
	}

	lap, ok := bestLap(laps)
	if !ok {
		return nil
	}

	return buildTrace(j.driverCode, j.segment, lap, deltaT)
}
