package domain

import "time"

// Timeframe selects the chart resolution.
type Timeframe string

const (
	TimeframeMinute Timeframe = "1m"
	TimeframeHour   Timeframe = "1h"
	TimeframeDay    Timeframe = "1d"
)

// Points returns how many steps back the series reaches for the timeframe.
// The series itself carries one extra point for the present.
func (t Timeframe) Points() int {
	switch t {
	case TimeframeMinute:
		return 60
	case TimeframeHour:
		return 24
	case TimeframeDay:
		return 30
	default:
		return 0
	}
}

// Unit is the label suffix for the timeframe.
func (t Timeframe) Unit() string {
	switch t {
	case TimeframeMinute:
		return "m"
	case TimeframeHour:
		return "h"
	case TimeframeDay:
		return "d"
	default:
		return ""
	}
}

// Valid reports whether t is one of the supported timeframes.
func (t Timeframe) Valid() bool {
	return t.Points() > 0
}

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	t := Timeframe(s)
	if !t.Valid() {
		return "", ErrInvalidTimeframe
	}
	return t, nil
}

// SeriesPoint is one labeled chart value.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartSeries is a full chart snapshot, oldest point first.
type ChartSeries struct {
	Timeframe Timeframe     `json:"timeframe"`
	Reference float64       `json:"reference"`
	Points    []SeriesPoint `json:"points"`
	Time      time.Time     `json:"time"`
}
