package pipeline

import (
	"context"
	"sync"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// extractAll runs per-driver extraction across a worker pool sized to the
// driver count (bounded by the configured worker cap). Each worker claims
// a contiguous chunk of driver codes; a driver whose laps are corrupt is
// logged and dropped rather than failing the whole session.
func extractAll(ctx context.Context, adapter telemetry.LapSource, session telemetry.Session, codes []string, tuning *config.TuningConfig) (map[string]*telemetry.DriverLapSeries, error) {
	n := len(codes)
	if n == 0 {
		return nil, nil
	}

	workers := tuning.ExtractionWorkerCount(n)
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	chunkSize := (n + 4*workers - 1) / (4 * workers)
	if chunkSize < 1 {
		chunkSize = 1
	}

	type chunk struct{ lo, hi int }
	var chunks []chunk
	for lo := 0; lo < n; lo += chunkSize {
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		chunks = append(chunks, chunk{lo, hi})
	}

	results := make([]*telemetry.DriverLapSeries, n)
	chunkCh := make(chan chunk, len(chunks))
	for _, c := range chunks {
		chunkCh <- c
	}
	close(chunkCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range chunkCh {
				for i := c.lo; i < c.hi; i++ {
					if ctx.Err() != nil {
						return
					}
					results[i] = extractOne(adapter, session, codes[i])
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*telemetry.DriverLapSeries, n)
	for i, s := range results {
		if s != nil {
			out[codes[i]] = s
		}
	}
	return out, nil
}

func extractOne(adapter telemetry.LapSource, session telemetry.Session, code string) *telemetry.DriverLapSeries {
	laps, err := adapter.Laps(session, code)
	if err != nil {
		obs.Log.Warn().Str("driver", code).Err(err).Msg("failed to fetch laps; skipping driver")
		return nil
	}
	series, ok, err := telemetry.ExtractDriver(code, laps)
	if err != nil {
		obs.Log.Warn().Str("driver", code).Err(err).Msg(raceerr.CorruptTelemetry.Error())
		return nil
	}
	if !ok {
		return nil
	}
	return series
}
