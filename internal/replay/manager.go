package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/joptimus/fox-replay-system/internal/cache"
	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// Manager is the process-wide registry of in-flight and completed replay
// sessions, keyed by a generated session ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cache      *cacheStore
	pipelineFn func(telemetry.Session) *pipeline.Config
	tuning     *config.TuningConfig
}

// NewManager builds a session manager. pipelineFn supplies the pipeline
// configuration (adapter, tuning, circuit geometry) for a given session —
// it is a function rather than a fixed value because different years/
// rounds may need different circuit-length parameters.
func NewManager(store *cache.Store, pipelineFn func(telemetry.Session) *pipeline.Config, tuning *config.TuningConfig) *Manager {
	m := &Manager{
		sessions:   make(map[string]*Session),
		pipelineFn: pipelineFn,
		tuning:     tuning,
	}
	if store != nil {
		m.cache = newCacheStore(store, cacheKeyFor)
	}
	return m
}

func cacheKeyFor(s telemetry.Session) cache.Key {
	return cache.Key{Year: s.Year, Round: s.Round, Kind: s.Kind}
}

// SessionID returns the deterministic session_id for (year, round, kind):
// "{year}_{round}_{kind}".
func SessionID(session telemetry.Session) string {
	return fmt.Sprintf("%d_%d_%s", session.Year, session.Round, session.Kind)
}

// Create returns the session for (year, round, kind), starting a fresh
// background load when none exists yet or refresh is requested. A second
// non-refresh call for the same (year, round, kind) returns the existing
// session — in-flight or already READY — without recomputation. started
// reports whether this call kicked off a new load.
func (m *Manager) Create(ctx context.Context, session telemetry.Session, refresh bool) (id string, started bool) {
	id = SessionID(session)

	m.mu.Lock()
	if _, ok := m.sessions[id]; ok && !refresh {
		m.mu.Unlock()
		return id, false
	}
	s := NewSession(id, session)
	m.sessions[id] = s
	m.mu.Unlock()

	pcfg := m.pipelineFn(session)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				obs.Log.Error().Interface("panic", r).Str("session", id).Msg("session load panicked")
			}
		}()
		s.Load(ctx, m.cache, pcfg, m.tuning)
	}()

	return id, true
}

// Get returns the session for id, or raceerr.NotFound if unknown.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", raceerr.NotFound, id)
	}
	return s, nil
}

// Remove drops a session from the registry, freeing its frame list for GC.
// It does not cancel an in-flight load; callers cancel via the context
// passed to Create.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
