package weather

// Raw payloads mirror the provider JSON. Every nested object and numeric
// field is a pointer so that a missing value can be told apart from zero.

type RawCondition struct {
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type RawPrecipitation struct {
	OneHour *float64 `json:"1h"`
}

type RawCoord struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type RawMain struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type RawWind struct {
	Speed *float64 `json:"speed"`
}

type RawSys struct {
	Country string `json:"country"`
	Sunrise *int64 `json:"sunrise"`
	Sunset  *int64 `json:"sunset"`
}

type RawCurrent struct {
	Name     string            `json:"name"`
	Dt       int64             `json:"dt"`
	Coord    *RawCoord         `json:"coord"`
	Main     *RawMain          `json:"main"`
	Wind     *RawWind          `json:"wind"`
	Weather  []RawCondition    `json:"weather"`
	Sys      *RawSys           `json:"sys"`
	Timezone *int              `json:"timezone"`
	Rain     *RawPrecipitation `json:"rain"`
	Snow     *RawPrecipitation `json:"snow"`
}

type RawForecastItem struct {
	Dt      int64          `json:"dt"`
	Main    *RawMain       `json:"main"`
	Weather []RawCondition `json:"weather"`
}

type RawForecast struct {
	List []RawForecastItem `json:"list"`
}

type RawAirQualityMain struct {
	AQI *int `json:"aqi"`
}

type RawAirQualityItem struct {
	Main *RawAirQualityMain `json:"main"`
}

type RawAirQuality struct {
	List []RawAirQualityItem `json:"list"`
}

// NormalizeCurrent maps a current-weather payload into a CurrentSnapshot.
func NormalizeCurrent(raw RawCurrent) CurrentSnapshot {
	snap := CurrentSnapshot{
		Location:      Location{Name: raw.Name},
		ObservedAtMs:  raw.Dt * 1000,
		Precipitation: precipitation(raw.Rain, raw.Snow),
	}

	if raw.Coord != nil {
		if raw.Coord.Lat != nil {
			snap.Location.Lat = *raw.Coord.Lat
		}
		if raw.Coord.Lon != nil {
			snap.Location.Lon = *raw.Coord.Lon
		}
	}
	if raw.Main != nil {
		snap.Temperature = raw.Main.Temp
		snap.Humidity = raw.Main.Humidity
	}
	if raw.Wind != nil {
		snap.WindSpeed = raw.Wind.Speed
	}
	if raw.Sys != nil {
		snap.Location.Country = raw.Sys.Country
		if raw.Sys.Sunrise != nil {
			snap.SunriseMs = *raw.Sys.Sunrise * 1000
		}
		if raw.Sys.Sunset != nil {
			snap.SunsetMs = *raw.Sys.Sunset * 1000
		}
	}
	if raw.Timezone != nil {
		snap.UTCOffsetSeconds = *raw.Timezone
	}

	snap.ConditionCode, snap.ConditionText = condition(raw.Weather)
	return snap
}

// NormalizeForecast maps a forecast payload into samples, keeping arrival order.
// Items without a temperature carry nothing to aggregate and are skipped.
func NormalizeForecast(raw RawForecast) []ForecastSample {
	samples := make([]ForecastSample, 0, len(raw.List))
	for _, item := range raw.List {
		if item.Main == nil || item.Main.Temp == nil {
			continue
		}
		code, text := condition(item.Weather)
		samples = append(samples, ForecastSample{
			TimestampMs:   item.Dt * 1000,
			Temperature:   *item.Main.Temp,
			ConditionCode: code,
			ConditionText: text,
		})
	}
	return samples
}

// NormalizeAirQuality returns the first AQI of the payload, or nil when it
// is missing or outside the 1..5 scale.
func NormalizeAirQuality(raw RawAirQuality) *int {
	if len(raw.List) == 0 || raw.List[0].Main == nil || raw.List[0].Main.AQI == nil {
		return nil
	}
	aqi := *raw.List[0].Main.AQI
	if aqi < 1 || aqi > 5 {
		return nil
	}
	return &aqi
}

// precipitation is the 1h rain amount, or the 1h snow amount when rain is zero or missing.
func precipitation(rain, snow *RawPrecipitation) float64 {
	if rain != nil && rain.OneHour != nil && *rain.OneHour != 0 {
		return *rain.OneHour
	}
	if snow != nil && snow.OneHour != nil {
		return *snow.OneHour
	}
	return 0
}

func condition(items []RawCondition) (code, text string) {
	code = DefaultIcon
	if len(items) == 0 {
		return code, ""
	}
	if items[0].Icon != "" {
		code = items[0].Icon
	}
	return code, items[0].Description
}
