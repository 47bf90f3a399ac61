package domain

import (
	"math"
	"time"
)

// DateLayout is the calendar-day format used for rate lookups and cache keys.
const DateLayout = "2006-01-02"

type RateObservation struct {
	Date time.Time `json:"date"`
	Rate float64   `json:"rate"`
}

// RateSeries is ordered by strictly increasing date. Missing days are allowed.
type RateSeries []RateObservation

// Validate checks ordering and that every rate is a positive finite number.
func (s RateSeries) Validate() error {
	for i, obs := range s {
		if math.IsNaN(obs.Rate) || math.IsInf(obs.Rate, 0) || obs.Rate <= 0 {
			return &InvalidInputError{Field: "rate", Reason: "must be a positive finite number on " + obs.Date.Format(DateLayout)}
		}
		if i > 0 && !obs.Date.After(s[i-1].Date) {
			return &InvalidInputError{Field: "date", Reason: "series must be strictly increasing at " + obs.Date.Format(DateLayout)}
		}
	}
	return nil
}

func (s RateSeries) Rates() []float64 {
	out := make([]float64, len(s))
	for i, obs := range s {
		out[i] = obs.Rate
	}
	return out
}

func (s RateSeries) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, obs := range s {
		out[i] = obs.Date
	}
	return out
}

// Last returns the most recent observation and false for an empty series.
func (s RateSeries) Last() (RateObservation, bool) {
	if len(s) == 0 {
		return RateObservation{}, false
	}
	return s[len(s)-1], true
}
