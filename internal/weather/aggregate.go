package weather

import (
	"math"
	"time"
)

const (
	// MaxDailyBuckets caps the daily summary.
	MaxDailyBuckets = 5
	// MaxHourlyPoints caps the hourly preview.
	MaxHourlyPoints = 8
)

type dayAccumulator struct {
	min  float64
	max  float64
	code string
	text string
}

// AggregateForecast groups a time-ordered 3-hour sample stream into daily
// buckets keyed by UTC calendar date and extracts the hourly preview.
// Hourly clock times are rendered in zone; a nil zone means time.Local.
//
// The condition of a bucket is the one of the last sample folded into it.
func AggregateForecast(samples []ForecastSample, zone *time.Location) Forecast {
	if zone == nil {
		zone = time.Local
	}

	out := Forecast{
		Daily:  []DailyBucket{},
		Hourly: []HourlyPoint{},
	}

	var (
		order []string
		days  = make(map[string]*dayAccumulator)
	)

	for _, s := range samples {
		ts := time.UnixMilli(s.TimestampMs)

		if len(out.Hourly) < MaxHourlyPoints {
			out.Hourly = append(out.Hourly, HourlyPoint{
				Time:          ts.In(zone).Format("15:04"),
				Temperature:   s.Temperature,
				ConditionCode: s.ConditionCode,
				ConditionText: s.ConditionText,
			})
		}

		key := ts.UTC().Format(time.DateOnly)
		day, ok := days[key]
		if !ok {
			day = &dayAccumulator{min: math.Inf(1), max: math.Inf(-1)}
			days[key] = day
			order = append(order, key)
		}
		day.min = math.Min(day.min, s.Temperature)
		day.max = math.Max(day.max, s.Temperature)
		day.code = s.ConditionCode
		day.text = s.ConditionText
	}

	for _, key := range order {
		if len(out.Daily) >= MaxDailyBuckets {
			break
		}
		day := days[key]
		out.Daily = append(out.Daily, DailyBucket{
			Date:          key,
			Min:           roundHalfUp(day.min),
			Max:           roundHalfUp(day.max),
			ConditionCode: day.code,
			ConditionText: day.text,
		})
	}

	return out
}

// roundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -2.5 becomes -2 and 2.5 becomes 3.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
