// Package replay manages replay sessions: loading a session's frames
// (from cache or by running the pipeline), tracking load progress, and
// driving the duplex streaming protocol that serves those frames to a
// connected client.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/frame"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// State is a session's lifecycle state.
type State string

const (
	StateInit    State = "INIT"
	StateLoading State = "LOADING"
	StateReady   State = "READY"
	StateError   State = "ERROR"
)

// ProgressObserver receives percent-complete updates as a session loads.
// Observers are called synchronously but their panics/errors never reach
// other observers or the loading goroutine.
type ProgressObserver func(percent float64, message string)

// Session owns one (year, round, kind) session's load state and, once
// READY, its frame list and pre-serialized caches.
type Session struct {
	ID      string
	Session telemetry.Session

	mu       sync.RWMutex
	state    State
	err      error
	percent  float64
	frames   []*frame.Frame
	metadata pipeline.Metadata

	binaryCache []byte // pre-serialized, only when frame count is small enough
	textCache   []byte // JSON array, same condition

	observers []ProgressObserver
	ready     chan struct{}
	readyOnce sync.Once
}

// NewSession creates a session in state INIT.
func NewSession(id string, s telemetry.Session) *Session {
	return &Session{ID: id, Session: s, state: StateInit, ready: make(chan struct{})}
}

// OnProgress registers an observer. Safe to call before or during loading.
func (s *Session) OnProgress(obs ProgressObserver) {
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()
}

func (s *Session) notify(percent float64, message string) {
	s.mu.Lock()
	s.percent = percent
	observers := append([]ProgressObserver(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					obs.Log.Warn().Interface("panic", r).Msg("progress observer panicked; ignoring")
				}
			}()
			o(percent, message)
		}()
	}
}

// State returns the current lifecycle state, error (if ERROR), and percent.
func (s *Session) State() (State, error, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err, s.percent
}

// Frames returns the loaded frame list. Only valid once State is READY.
func (s *Session) Frames() []*frame.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Metadata returns the loaded session metadata. Only valid once State is READY.
func (s *Session) Metadata() pipeline.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata
}

// WaitReady blocks until the session reaches READY or ERROR, or ctx/timeout
// expires first.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	select {
	case <-s.ready:
		_, err, _ := s.State()
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%w: session %s did not become ready within %s", raceerr.UpstreamUnavailable, s.ID, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markReady() { s.readyOnce.Do(func() { close(s.ready) }) }

// Load runs the full session-generation flow and transitions the session
// through LOADING to READY (or ERROR), reporting progress at the stage
// boundaries: 0% on entry, 10% when telemetry extraction starts, 60% when it
// completes, 75% at timing alignment and geometry, a 75-90% band while frames
// are assembled, 90% before pre-serialization and 100% at READY. Extraction
// reports no percentages between 10% and 60%. A cache hit goes from 0%
// straight to 100%. A freshly computed session is written to the cache
// before it is marked READY.
func (s *Session) Load(ctx context.Context, store *cacheStore, pcfg *pipeline.Config, tuning *config.TuningConfig) {
	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()
	s.notify(0, "loading")

	if store != nil {
		if artifact, err := store.get(s.Session); err == nil {
			s.finishFromCache(artifact, tuning)
			return
		}
	}

	result, err := pipeline.Run(ctx, s.Session, pcfg, func(stage pipeline.Stage, percent float64, message string) {
		s.notify(percent, message)
	})
	if err != nil {
		s.fail(err)
		return
	}

	if store != nil {
		if err := store.put(s.Session, result); err != nil {
			obs.Log.Warn().Err(err).Str("session", s.ID).Msg("failed to write session to cache")
		}
	}

	s.notify(90, "pre-serializing frame caches")
	s.finishFromResult(result, tuning)
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateError
	s.err = err
	s.mu.Unlock()
	s.notify(100, fmt.Sprintf("error: %v", err))
	s.markReady()
}

func (s *Session) finishFromResult(result *pipeline.Result, tuning *config.TuningConfig) {
	s.preserialize(result.Frames, tuning)

	s.mu.Lock()
	s.frames = result.Frames
	s.metadata = result.Metadata
	s.state = StateReady
	s.mu.Unlock()
	s.notify(100, "ready")
	s.markReady()
}

func (s *Session) finishFromCache(artifact *cachedArtifact, tuning *config.TuningConfig) {
	s.preserialize(artifact.Frames, tuning)

	s.mu.Lock()
	s.frames = artifact.Frames
	s.metadata = artifact.Metadata
	s.state = StateReady
	s.mu.Unlock()
	s.notify(100, "ready (cached)")
	s.markReady()
}

// preserialize pre-encodes the binary and JSON representations of the
// frame list when it is small enough to be worth the memory; larger
// sessions stream and marshal on demand instead.
func (s *Session) preserialize(frames []*frame.Frame, tuning *config.TuningConfig) {
	if len(frames) > tuning.PreserializeCap() {
		return
	}
	if bin, err := PreserializeBinary(frames); err == nil {
		s.mu.Lock()
		s.binaryCache = bin
		s.mu.Unlock()
	} else {
		obs.Log.Warn().Err(err).Msg("binary pre-serialization failed; will serialize on demand")
	}
	if text, err := json.Marshal(frames); err == nil {
		s.mu.Lock()
		s.textCache = text
		s.mu.Unlock()
	} else {
		obs.Log.Warn().Err(err).Msg("text pre-serialization failed; will serialize on demand")
	}
}
