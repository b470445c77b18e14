// Package api exposes the control-plane HTTP operations (round listing,
// session creation, session status) and the websocket streaming endpoint
// that serves binary race frames to replay clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/raceerr"
	"github.com/joptimus/fox-replay-system/internal/replay"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// Server binds the replay session manager and the upstream adapter's
// listing surfaces to HTTP.
type Server struct {
	manager  *replay.Manager
	schedule telemetry.ScheduleSource
	laps     telemetry.LapSource
	tuning   *config.TuningConfig
}

// NewServer builds the control-plane server. schedule and laps may be
// nil, in which case the round-listing and qualifying endpoints report
// upstream failure.
func NewServer(manager *replay.Manager, schedule telemetry.ScheduleSource, laps telemetry.LapSource, tuning *config.TuningConfig) *Server {
	return &Server{
		manager:  manager,
		schedule: schedule,
		laps:     laps,
		tuning:   tuning,
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rounds", s.listRounds)
	mux.HandleFunc("/api/sprints", s.listSprints)
	mux.HandleFunc("/api/sessions", s.createSession)
	mux.HandleFunc("/api/sessions/", s.sessionStatus)
	mux.HandleFunc("/api/qualifying", s.listQualifying)
	mux.HandleFunc("/api/stream/", s.streamSession)
	mux.HandleFunc("/api/health", s.health)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type roundPayload struct {
	RoundNumber int    `json:"round_number"`
	EventName   string `json:"event_name"`
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	s.listSchedule(w, r, false)
}

func (s *Server) listSprints(w http.ResponseWriter, r *http.Request) {
	s.listSchedule(w, r, true)
}

func (s *Server) listSchedule(w http.ResponseWriter, r *http.Request, sprintsOnly bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "invalid year", http.StatusBadRequest)
		return
	}
	if s.schedule == nil {
		http.Error(w, "no schedule source configured", http.StatusBadGateway)
		return
	}
	rounds, err := s.schedule.Rounds(year)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to fetch rounds: %v", err), http.StatusBadGateway)
		return
	}

	payload := make([]roundPayload, 0, len(rounds))
	for _, rd := range rounds {
		if sprintsOnly && !rd.HasSprint {
			continue
		}
		payload = append(payload, roundPayload{RoundNumber: rd.RoundNumber, EventName: rd.EventName})
	}
	writeJSON(w, http.StatusOK, payload)
}

type createSessionRequest struct {
	Year    int    `json:"year"`
	Round   int    `json:"round"`
	Kind    string `json:"kind"`
	Refresh bool   `json:"refresh"`
}

type sessionResponse struct {
	SessionID string          `json:"session_id,omitempty"`
	Loading   bool            `json:"loading"`
	Metadata  metadataPayload `json:"metadata"`
}

// metadataPayload is the wire shape of session metadata. Field names are
// part of the client contract.
type metadataPayload struct {
	TotalFrames   int                           `json:"total_frames"`
	TotalLaps     int                           `json:"total_laps"`
	DriverColors  map[string][3]uint8           `json:"driver_colors,omitempty"`
	DriverNumbers map[string]int                `json:"driver_numbers,omitempty"`
	DriverTeams   map[string]string             `json:"driver_teams,omitempty"`
	TrackGeometry any                           `json:"track_geometry,omitempty"`
	TrackStatus   []telemetry.TrackStatusInterval `json:"track_status,omitempty"`
	RaceStartTime float64                       `json:"race_start_time"`
	Error         string                        `json:"error,omitempty"`
}

func validKind(kind string) bool {
	switch kind {
	case "R", "S", "Q", "SQ":
		return true
	}
	return false
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !validKind(req.Kind) {
		http.Error(w, fmt.Sprintf("invalid session kind %q", req.Kind), http.StatusBadRequest)
		return
	}

	// The load outlives the create request; cancellation of an in-flight
	// load is not supported.
	session := telemetry.Session{Year: req.Year, Round: req.Round, Kind: req.Kind}
	id, _ := s.manager.Create(context.Background(), session, req.Refresh)

	sess, err := s.manager.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionPayload(id, sess))
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	sess, err := s.manager.Get(id)
	if err != nil {
		if errors.Is(err, raceerr.NotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := s.sessionPayload(id, sess)
	resp.SessionID = ""
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sessionPayload(id string, sess *replay.Session) sessionResponse {
	state, loadErr, _ := sess.State()
	loading := state == replay.StateInit || state == replay.StateLoading

	meta := metadataPayload{}
	if state == replay.StateReady {
		meta = metadataFromPipeline(sess.Metadata(), len(sess.Frames()))
	}
	if loadErr != nil {
		meta.Error = loadErr.Error()
	}
	return sessionResponse{SessionID: id, Loading: loading, Metadata: meta}
}

func metadataFromPipeline(m pipeline.Metadata, frameCount int) metadataPayload {
	return metadataPayload{
		TotalFrames:   frameCount,
		TotalLaps:     m.TotalLaps,
		DriverColors:  m.DriverColors,
		DriverNumbers: m.DriverNumbers,
		DriverTeams:   m.DriverTeams,
		TrackGeometry: m.Geometry,
		TrackStatus:   m.TrackStatus,
		RaceStartTime: m.RaceStartTimeS,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
