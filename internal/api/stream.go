package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/joptimus/fox-replay-system/internal/obs"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/replay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	// The replay client and the control plane are served from different
	// origins in development; session ids are not secrets.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamSession upgrades /api/stream/{id} to a websocket and runs the
// duplex streaming loop over it: JSON command frames in, length-prefixed
// binary frame records out. An unknown session id or a session in ERROR
// yields a single {"error": ...} text message before the close.
func (s *Server) streamSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stream/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	log := obs.Log.With().Str("session", id).Str("client", clientID).Logger()

	sess, err := s.manager.Get(id)
	if err != nil {
		writeStreamError(conn, err.Error())
		return
	}

	loop := replay.NewLoop(sess, newWSCommandSource(conn), &wsFrameSink{conn: conn}, s.tuning)
	log.Info().Msg("stream client connected")

	if err := loop.Run(r.Context()); err != nil {
		switch {
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			log.Info().Msg("stream client disconnected")
		case isFatalStream(err):
			log.Info().Err(err).Msg("stream closed")
		default:
			// Load failures and ready-wait timeouts surface verbatim to the
			// client before the close.
			writeStreamError(conn, err.Error())
			log.Warn().Err(err).Msg("stream closed with error")
		}
	}
}

func isFatalStream(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) || errors.Is(err, raceerr.FatalSendFailure)
}

// wsCommandSource adapts a websocket connection to replay.CommandSource.
// Gorilla read errors are permanent, so commands are read on a dedicated
// goroutine and handed over through a channel; ReadCommand then bounds its
// wait without touching the connection, keeping the absence of commands
// from ever stalling frame emission. A malformed message is a protocol
// violation and closes the connection with an internal-error close code.
type wsCommandSource struct {
	cmds chan replay.Command
	errs chan error
}

func newWSCommandSource(conn *websocket.Conn) *wsCommandSource {
	s := &wsCommandSource{
		cmds: make(chan replay.Command, 8),
		errs: make(chan error, 1),
	}
	go s.readLoop(conn)
	return s
}

func (c *wsCommandSource) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.errs <- err
			return
		}
		var cmd replay.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "malformed command"),
				time.Now().Add(time.Second))
			c.errs <- err
			return
		}
		select {
		case c.cmds <- cmd:
		default:
			// The loop drains every tick; a full buffer means the client is
			// flooding or the stream is shutting down. Dropping is safe and
			// keeps this goroutine from outliving the handler.
			obs.Log.Warn().Str("action", cmd.Action).Msg("command buffer full, dropping")
		}
	}
}

func (c *wsCommandSource) ReadCommand(timeout time.Duration) (replay.Command, bool, error) {
	select {
	case cmd := <-c.cmds:
		return cmd, true, nil
	case err := <-c.errs:
		return replay.Command{}, false, err
	case <-time.After(timeout):
		return replay.Command{}, false, nil
	}
}

// wsFrameSink maps each length-prefixed frame record (one Write per
// record, see replay.EncodeFrame) to one binary websocket message.
type wsFrameSink struct {
	conn *websocket.Conn
}

func (s *wsFrameSink) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeStreamError(conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	_ = conn.WriteMessage(websocket.TextMessage, payload)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
