package replay

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
)

// StreamState is the duplex streaming loop's state machine position.
type StreamState string

const (
	StreamAwaitReady StreamState = "AWAIT_READY"
	StreamPaused     StreamState = "PAUSED"
	StreamPlaying    StreamState = "PLAYING"
	StreamEnded      StreamState = "ENDED"
	StreamClosed     StreamState = "CLOSED"
)

// Command is one JSON control message read from the client:
// {"action":"play","speed":s}, {"action":"pause"}, or
// {"action":"seek","frame":f}. Speed is a pointer so an omitted speed on
// play defaults to 1.0 rather than 0.
type Command struct {
	Action string   `json:"action"`
	Speed  *float64 `json:"speed,omitempty"`
	Frame  *float64 `json:"frame,omitempty"`
}

// CommandSource reads the next client command with a bounded wait. ok is
// false if no command arrived within timeout; err is non-nil only for a
// real read failure (the connection is assumed dead in that case).
type CommandSource interface {
	ReadCommand(timeout time.Duration) (cmd Command, ok bool, err error)
}

// FrameSink accepts a length-prefixed binary frame record. See codec.go.
type FrameSink interface {
	io.Writer
}

// Loop drives one client's duplex stream: it waits for the session to
// become ready, then advances a fractional playhead across the session's
// frames at the tick rate, sending at most one binary frame record per
// tick and polling for play/pause/seek commands in between ticks without
// blocking frame emission.
type Loop struct {
	session *Session
	cmds    CommandSource
	sink    FrameSink
	tuning  *config.TuningConfig

	state       StreamState
	playhead    float64 // fractional frame index
	speed       float64 // playback speed multiplier
	lastSentIdx int
}

// NewLoop builds a streaming loop bound to session, reading commands from
// cmds and writing binary frame records to sink.
func NewLoop(session *Session, cmds CommandSource, sink FrameSink, tuning *config.TuningConfig) *Loop {
	return &Loop{
		session:     session,
		cmds:        cmds,
		sink:        sink,
		tuning:      tuning,
		state:       StreamAwaitReady,
		speed:       1.0,
		lastSentIdx: -1,
	}
}

// State returns the loop's current state.
func (l *Loop) State() StreamState { return l.state }

// Run drives the loop until ctx is cancelled, the client disconnects, or a
// fatal send failure occurs. It first waits for the session to become
// READY (bounded by the configured ready-wait timeout); a session in ERROR
// propagates the session's load error.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.session.WaitReady(ctx, l.tuning.ReadyWaitTimeout()); err != nil {
		l.state = StreamClosed
		return err
	}
	l.state = StreamPaused

	ticker := time.NewTicker(l.tuning.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.state = StreamClosed
			return ctx.Err()
		case <-ticker.C:
			if err := l.Tick(); err != nil {
				l.state = StreamClosed
				return err
			}
		}

		cmd, ok, err := l.cmds.ReadCommand(l.tuning.CommandReadTimeout())
		if err != nil {
			l.state = StreamClosed
			return fmt.Errorf("%w: %v", raceerr.FatalSendFailure, err)
		}
		if ok {
			l.Apply(cmd)
		}
	}
}

// Apply handles one client command. Unknown actions are ignored.
func (l *Loop) Apply(cmd Command) {
	switch cmd.Action {
	case "play":
		l.speed = 1.0
		if cmd.Speed != nil {
			l.speed = *cmd.Speed
		}
		l.state = StreamPlaying
	case "pause":
		l.state = StreamPaused
	case "seek":
		if cmd.Frame == nil || *cmd.Frame < 0 {
			obs.Log.Warn().Str("action", cmd.Action).Msg("seek without a valid frame, ignoring")
			return
		}
		l.playhead = *cmd.Frame
		l.lastSentIdx = -1
		if l.state == StreamEnded {
			l.state = StreamPaused
		}
	default:
		obs.Log.Warn().Str("action", cmd.Action).Msg("unrecognized stream command, ignoring")
	}
}

// Tick advances the playhead by one tick's worth of playback and emits at
// most one frame: Frame[⌊playhead⌋] when that index differs from the last
// one sent. Crossing the end of the frame list transitions to ENDED with
// the playhead parked on the final frame.
func (l *Loop) Tick() error {
	if l.state != StreamPlaying {
		return nil
	}
	frames := l.session.Frames()
	n := len(frames)
	if n == 0 {
		l.state = StreamEnded
		return nil
	}

	l.playhead += l.speed * l.tuning.SampleRate() / l.tuning.TickRate()

	idx := int(l.playhead)
	if idx >= 0 && idx < n && idx != l.lastSentIdx {
		if err := EncodeFrame(l.sink, frames[idx]); err != nil {
			return fmt.Errorf("%w: %v", raceerr.FatalSendFailure, err)
		}
		l.lastSentIdx = idx
	}

	if l.playhead >= float64(n) {
		l.state = StreamEnded
		l.playhead = float64(n - 1)
	}
	return nil
}

// Playhead returns the current fractional frame index.
func (l *Loop) Playhead() float64 { return l.playhead }

// LastSentIndex returns the index of the most recently emitted frame, or
// -1 if none has been sent since the start or the last seek.
func (l *Loop) LastSentIndex() int { return l.lastSentIdx }
