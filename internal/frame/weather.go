package frame

// NewWeatherSnapshot classifies rainfall into the RainState enum.
func NewWeatherSnapshot(trackTempC, airTempC, humidityPct, windSpeedKph, windDirection, rainfallMM float64) *WeatherSnapshot {
	state := "DRY"
	if rainfallMM > 0 {
		state = "RAINING"
	}
	return &WeatherSnapshot{
		TrackTempC:    Sanitize(trackTempC),
		AirTempC:      Sanitize(airTempC),
		HumidityPct:   Sanitize(humidityPct),
		WindSpeedKph:  Sanitize(windSpeedKph),
		WindDirection: Sanitize(windDirection),
		RainState:     state,
	}
}
