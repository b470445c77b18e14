package replay

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joptimus/fox-replay-system/internal/cache"
	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// twoDriverFixture builds a minimal race: two drivers, one 100m lap each,
// green from t=0.
func twoDriverFixture() *telemetry.FixtureAdapter {
	makeLap := func(t0 float64) telemetry.LapRecord {
		n := 21
		tt := telemetry.TelemetryTable{
			Time:        make([]float64, n),
			X:           make([]float64, n),
			Y:           make([]float64, n),
			Distance:    make([]float64, n),
			RelDistance: make([]float64, n),
			Speed:       make([]float64, n),
			Gear:        make([]int, n),
			DRS:         make([]bool, n),
			Throttle:    make([]float64, n),
			Brake:       make([]float64, n),
			RPM:         make([]float64, n),
		}
		for i := 0; i < n; i++ {
			frac := float64(i) / float64(n-1)
			tt.Time[i] = t0 + frac*10
			tt.Distance[i] = frac * 100
			tt.RelDistance[i] = frac
			tt.Speed[i] = 36
			tt.Gear[i] = 4
		}
		lapTime := 10.0
		return telemetry.LapRecord{LapNumber: 1, Compound: "SOFT", LapTime: &lapTime, Telemetry: tt}
	}
	return telemetry.NewFixtureAdapter(&telemetry.FixtureDocument{
		Sessions: map[string]*telemetry.FixtureSession{
			"2024_1_R": {
				Drivers: map[string]*telemetry.FixtureDriver{
					"AAA": {Laps: []telemetry.LapRecord{makeLap(0)}},
					"BBB": {Laps: []telemetry.LapRecord{makeLap(1)}},
				},
				TrackStatus: []telemetry.TrackStatusRow{{Time: 0, StatusCode: "1"}},
			},
		},
	})
}

func pipelineFnFor(adapter *telemetry.FixtureAdapter) func(telemetry.Session) *pipeline.Config {
	return func(telemetry.Session) *pipeline.Config {
		return &pipeline.Config{Adapter: adapter, DriverInfo: adapter, Tuning: config.EmptyTuningConfig()}
	}
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.WaitReady(context.Background(), 30*time.Second))
}

func TestManager_CreateLoadsToReady(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, pipelineFnFor(twoDriverFixture()), config.EmptyTuningConfig())
	id, started := m.Create(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, false)
	assert.Equal(t, "2024_1_R", id)
	assert.True(t, started)

	s, err := m.Get(id)
	require.NoError(t, err)
	waitReady(t, s)

	state, loadErr, percent := s.State()
	assert.Equal(t, StateReady, state)
	assert.NoError(t, loadErr)
	assert.Equal(t, 100.0, percent)
	assert.NotEmpty(t, s.Frames())
	assert.Equal(t, []string{"AAA", "BBB"}, s.Metadata().DriverCodes)
}

func TestManager_SecondCreateReturnsExisting(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, pipelineFnFor(twoDriverFixture()), config.EmptyTuningConfig())
	sess := telemetry.Session{Year: 2024, Round: 1, Kind: "R"}

	id1, started1 := m.Create(context.Background(), sess, false)
	id2, started2 := m.Create(context.Background(), sess, false)
	assert.Equal(t, id1, id2)
	assert.True(t, started1)
	assert.False(t, started2)
	assert.Equal(t, 1, m.Count())

	// refresh=true replaces the entry with a fresh load.
	_, started3 := m.Create(context.Background(), sess, true)
	assert.True(t, started3)
}

func TestManager_GetUnknownSession(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, pipelineFnFor(twoDriverFixture()), config.EmptyTuningConfig())
	_, err := m.Get("1999_9_R")
	assert.Error(t, err)
}

func TestSession_EmptyUpstreamTransitionsToError(t *testing.T) {
	t.Parallel()

	adapter := telemetry.NewFixtureAdapter(&telemetry.FixtureDocument{
		Sessions: map[string]*telemetry.FixtureSession{
			"2024_1_R": {Drivers: map[string]*telemetry.FixtureDriver{}},
		},
	})
	m := NewManager(nil, pipelineFnFor(adapter), config.EmptyTuningConfig())
	id, _ := m.Create(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, false)

	s, err := m.Get(id)
	require.NoError(t, err)
	loadErr := s.WaitReady(context.Background(), 30*time.Second)
	require.Error(t, loadErr)
	assert.Equal(t, "No valid telemetry data found for any driver", loadErr.Error())

	state, _, _ := s.State()
	assert.Equal(t, StateError, state)
}

func TestSession_ProgressObserversIsolatedFromPanics(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, pipelineFnFor(twoDriverFixture()), config.EmptyTuningConfig())
	id, _ := m.Create(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, false)
	s, err := m.Get(id)
	require.NoError(t, err)

	var mu sync.Mutex
	var percents []float64
	s.OnProgress(func(float64, string) { panic("subscriber bug") })
	s.OnProgress(func(percent float64, _ string) {
		mu.Lock()
		percents = append(percents, percent)
		mu.Unlock()
	})

	waitReady(t, s)
	mu.Lock()
	defer mu.Unlock()
	// The panicking observer never starves the healthy one; the final
	// emit is 100%.
	require.NotEmpty(t, percents)
	assert.Equal(t, 100.0, percents[len(percents)-1])
}

func TestSession_CacheReuse(t *testing.T) {
	t.Parallel()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	adapter := twoDriverFixture()
	sess := telemetry.Session{Year: 2024, Round: 1, Kind: "R"}

	m1 := NewManager(store, pipelineFnFor(adapter), config.EmptyTuningConfig())
	id, _ := m1.Create(context.Background(), sess, false)
	s1, err := m1.Get(id)
	require.NoError(t, err)
	waitReady(t, s1)

	// A fresh manager over the same store restores the artifact instead
	// of recomputing: frame list and metadata survive the round trip.
	failing := telemetry.NewFixtureAdapter(&telemetry.FixtureDocument{Sessions: map[string]*telemetry.FixtureSession{}})
	m2 := NewManager(store, pipelineFnFor(failing), config.EmptyTuningConfig())
	id2, _ := m2.Create(context.Background(), sess, false)
	require.Equal(t, id, id2)
	s2, err := m2.Get(id2)
	require.NoError(t, err)
	waitReady(t, s2)

	assert.Equal(t, s1.Frames(), s2.Frames())
	assert.Equal(t, s1.Metadata().DriverCodes, s2.Metadata().DriverCodes)
	assert.Equal(t, s1.Metadata().TotalLaps, s2.Metadata().TotalLaps)
}

func TestSession_Preserialization(t *testing.T) {
	t.Parallel()

	m := NewManager(nil, pipelineFnFor(twoDriverFixture()), config.EmptyTuningConfig())
	id, _ := m.Create(context.Background(), telemetry.Session{Year: 2024, Round: 1, Kind: "R"}, false)
	s, err := m.Get(id)
	require.NoError(t, err)
	waitReady(t, s)

	// Well under the pre-serialization cap: both caches materialize, and
	// the binary cache decodes back to the frame list.
	require.NotEmpty(t, s.binaryCache)
	require.NotEmpty(t, s.textCache)

	r := bytes.NewReader(s.binaryCache)
	first, err := DecodeFrame(r)
	require.NoError(t, err)
	assert.InDelta(t, s.Frames()[0].TS, first.TS, 1e-9)
}

func TestEncodeDecodeFrame_RoundTrip(t *testing.T) {
	t.Parallel()

	lap := 93.1
	f := &frame.Frame{
		TS:        12.34,
		LeaderLap: 7,
		Drivers: map[string]*frame.DriverFrameRecord{
			"VER": {Position: 1, Speed: 301.5, Status: frame.StatusRunning, LapTimeS: &lap},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeFrame(&buf, f))

	got, err := DecodeFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
