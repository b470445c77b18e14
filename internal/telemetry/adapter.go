package telemetry

// This file specifies the narrow interfaces the pipeline consumes from the
// upstream telemetry adapter. The adapter itself — the library that fetches
// raw per-lap telemetry and timing tables from the data source — is an
// external collaborator; the pipeline only depends on these contracts.

// Session identifies a single event session the adapter resolves against.
type Session struct {
	Year   int
	Round  int
	Kind   string // "R", "S", "Q", "SQ"
}

// LapRecord is one completed (or incomplete) lap for a driver, as yielded
// by get_per_driver_laps.
type LapRecord struct {
	LapNumber         int
	Compound          string
	FinishingPosition *int // nil if unknown/lap incomplete
	LapTime           *float64
	Sector1           *float64
	Sector2           *float64
	Sector3           *float64
	Telemetry         TelemetryTable
}

// TelemetryTable is the time-indexed telemetry for a single lap, as
// returned embedded in a LapRecord. All arrays are the same length and
// time-sorted within the lap.
type TelemetryTable struct {
	Time        []float64 // s, session-relative
	X           []float64
	Y           []float64
	Distance    []float64 // per-lap distance, m
	RelDistance []float64 // in [0,1]
	Speed       []float64 // km/h
	Gear        []int
	DRS         []bool
	Throttle    []float64 // 0-100
	Brake       []float64 // 0-100
	RPM         []float64
}

// Len returns the number of samples in the table.
func (t TelemetryTable) Len() int { return len(t.Time) }

// TimingRow is one sample of FIA timing-tower data, as returned by
// get_stream_timing.
type TimingRow struct {
	Time            float64
	Driver          string
	Position        *int // stream position; nil if absent
	GapToLeaderS    *float64
	IntervalAheadS  *float64
}

// TrackStatusRow is one sample of track status, as returned by
// get_track_status.
type TrackStatusRow struct {
	Time       float64
	StatusCode string // one of "1","2","4","6","7"
}

// WeatherRow is one weather sample, as returned by get_weather.
type WeatherRow struct {
	Time          float64
	TrackTempC    float64
	AirTempC      float64
	HumidityPct   float64
	WindSpeedKph  float64
	WindDirection float64
	RainfallMM    float64
}

// LapSource fetches per-driver, per-lap telemetry and lap scalars.
type LapSource interface {
	// DriverCodes lists the drivers present in the session.
	DriverCodes(session Session) ([]string, error)
	// Laps returns the driver's laps in lap order.
	Laps(session Session, driverCode string) ([]LapRecord, error)
}

// TimingSource fetches FIA timing-tower data for the whole session.
type TimingSource interface {
	StreamTiming(session Session) ([]TimingRow, error)
}

// TrackStatusSource fetches track-status intervals for the whole session.
type TrackStatusSource interface {
	TrackStatus(session Session) ([]TrackStatusRow, error)
}

// WeatherSource fetches weather samples for the whole session, which may be
// unavailable (nil, nil is a valid "no weather data" response).
type WeatherSource interface {
	Weather(session Session) ([]WeatherRow, error)
}

// DriverInfo supplements the four core upstream operations with the
// per-driver roster facts session metadata needs (team, car number,
// display colour) but that get_per_driver_laps itself does not carry.
type DriverInfo struct {
	TeamName  string
	CarNumber int
	ColorRGB  [3]uint8
}

// DriverInfoSource resolves roster metadata for one driver. It is optional:
// an Adapter that does not implement it simply yields empty metadata.
type DriverInfoSource interface {
	DriverInfo(session Session, driverCode string) (DriverInfo, bool)
}

// Adapter bundles the four upstream operations the pipeline depends on.
type Adapter interface {
	LapSource
	TimingSource
	TrackStatusSource
	WeatherSource
}

// RoundInfo is one event on a season's calendar.
type RoundInfo struct {
	RoundNumber int
	EventName   string
	HasSprint   bool
}

// ScheduleSource lists a season's rounds. Used by the control plane for
// the season/round listing operations; the frame pipeline itself never
// consults it.
type ScheduleSource interface {
	Rounds(year int) ([]RoundInfo, error)
}
