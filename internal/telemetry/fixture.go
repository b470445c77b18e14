package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// FixtureDocument is a recorded set of adapter tables, loadable from a
// JSON file. It backs the server's fixture mode (serving a session without
// the live upstream library) and test adapters.
type FixtureDocument struct {
	Rounds   []RoundInfo                `json:"rounds,omitempty"`
	Sessions map[string]*FixtureSession `json:"sessions"` // keyed "{year}_{round}_{kind}"
}

// FixtureSession is one session's worth of upstream tables.
type FixtureSession struct {
	Drivers     map[string]*FixtureDriver `json:"drivers"`
	Timing      []TimingRow               `json:"timing,omitempty"`
	TrackStatus []TrackStatusRow          `json:"track_status,omitempty"`
	Weather     []WeatherRow              `json:"weather,omitempty"`
}

// FixtureDriver is one driver's laps plus roster facts.
type FixtureDriver struct {
	Laps []LapRecord `json:"laps"`
	Info DriverInfo  `json:"info"`
}

// FixtureAdapter implements Adapter, DriverInfoSource, and ScheduleSource
// over a FixtureDocument.
type FixtureAdapter struct {
	doc *FixtureDocument
}

// NewFixtureAdapter wraps an in-memory document.
func NewFixtureAdapter(doc *FixtureDocument) *FixtureAdapter {
	return &FixtureAdapter{doc: doc}
}

// LoadFixture reads a FixtureDocument from a JSON file.
func LoadFixture(path string) (*FixtureAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var doc FixtureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return NewFixtureAdapter(&doc), nil
}

func fixtureKey(s Session) string {
	return fmt.Sprintf("%d_%d_%s", s.Year, s.Round, s.Kind)
}

func (f *FixtureAdapter) session(s Session) (*FixtureSession, error) {
	fs, ok := f.doc.Sessions[fixtureKey(s)]
	if !ok {
		return nil, fmt.Errorf("fixture has no session %s", fixtureKey(s))
	}
	return fs, nil
}

func (f *FixtureAdapter) DriverCodes(s Session) ([]string, error) {
	fs, err := f.session(s)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(fs.Drivers))
	for code := range fs.Drivers {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (f *FixtureAdapter) Laps(s Session, driverCode string) ([]LapRecord, error) {
	fs, err := f.session(s)
	if err != nil {
		return nil, err
	}
	d, ok := fs.Drivers[driverCode]
	if !ok {
		return nil, fmt.Errorf("fixture session %s has no driver %s", fixtureKey(s), driverCode)
	}
	return d.Laps, nil
}

func (f *FixtureAdapter) StreamTiming(s Session) ([]TimingRow, error) {
	fs, err := f.session(s)
	if err != nil {
		return nil, err
	}
	return fs.Timing, nil
}

func (f *FixtureAdapter) TrackStatus(s Session) ([]TrackStatusRow, error) {
	fs, err := f.session(s)
	if err != nil {
		return nil, err
	}
	return fs.TrackStatus, nil
}

func (f *FixtureAdapter) Weather(s Session) ([]WeatherRow, error) {
	fs, err := f.session(s)
	if err != nil {
		return nil, err
	}
	return fs.Weather, nil
}

func (f *FixtureAdapter) DriverInfo(s Session, driverCode string) (DriverInfo, bool) {
	fs, err := f.session(s)
	if err != nil {
		return DriverInfo{}, false
	}
	d, ok := fs.Drivers[driverCode]
	if !ok {
		return DriverInfo{}, false
	}
	return d.Info, true
}

func (f *FixtureAdapter) Rounds(year int) ([]RoundInfo, error) {
	if len(f.doc.Rounds) == 0 {
		return nil, fmt.Errorf("fixture has no round listing for %d", year)
	}
	return f.doc.Rounds, nil
}
