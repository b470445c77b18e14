package api

import (
	"net/http"
	"strconv"

	"github.com/joptimus/fox-replay-system/internal/qualifying"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

// segmentsForKind maps a session kind to its qualifying segment labels.
func segmentsForKind(kind string) []string {
	if kind == "SQ" {
		return []string{"SQ1", "SQ2", "SQ3"}
	}
	return []string{"Q1", "Q2", "Q3"}
}

// listQualifying builds the per-driver fastest-lap catalog for
// /api/qualifying?year=&round=&kind=. Segment extraction fans out across
// drivers; a (driver, segment) pair without a completable lap is absent
// from the response.
func (s *Server) listQualifying(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.laps == nil {
		http.Error(w, "no lap source configured", http.StatusBadGateway)
		return
	}

	year, errYear := strconv.Atoi(r.URL.Query().Get("year"))
	round, errRound := strconv.Atoi(r.URL.Query().Get("round"))
	if errYear != nil || errRound != nil {
		http.Error(w, "invalid year or round", http.StatusBadRequest)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "Q"
	}
	if kind != "Q" && kind != "SQ" {
		http.Error(w, "kind must be Q or SQ", http.StatusBadRequest)
		return
	}

	session := telemetry.Session{Year: year, Round: round, Kind: kind}
	segments := segmentsForKind(kind)

	// Driver roster comes from the first segment that knows any drivers.
	var codes []string
	for _, seg := range segments {
		segSession := session
		segSession.Kind = seg
		if c, err := s.laps.DriverCodes(segSession); err == nil && len(c) > 0 {
			codes = c
			break
		}
	}
	if len(codes) == 0 {
		http.Error(w, "no drivers found for session", http.StatusBadGateway)
		return
	}

	catalog := qualifying.BuildCatalog(r.Context(), s.laps, session, codes, segments, s.tuning)
	writeJSON(w, http.StatusOK, catalog)
}
