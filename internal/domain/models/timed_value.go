package models

import (
	"time"
)

// ValueKind names the family of timed values (one table per kind).
type ValueKind string

const (
	KindPower   ValueKind = "power"
	KindPrice   ValueKind = "price"
	KindWeather ValueKind = "weather"
)

// TimedValueType returns the name used for the kind in forecasting job payloads.
func (k ValueKind) TimedValueType() string {
	switch k {
	case KindPower:
		return "Power"
	case KindPrice:
		return "Price"
	case KindWeather:
		return "Weather"
	}
	return string(k)
}

// ParseTimedValueType is the inverse of TimedValueType.
func ParseTimedValueType(s string) (ValueKind, bool) {
	switch s {
	case "Power":
		return KindPower, true
	case "Price":
		return KindPrice, true
	case "Weather":
		return KindWeather, true
	}
	return "", false
}

// TimedValue is one belief about an asset's value during an event.
// Horizon <= 0 is a measurement (or after-the-fact estimate), > 0 a forward forecast.
type TimedValue struct {
	Kind         ValueKind     `json:"kind"`
	AssetID      int64         `json:"asset_id"`
	Datetime     time.Time     `json:"datetime"`
	Horizon      time.Duration `json:"horizon"`
	Value        float64       `json:"value"`
	DataSourceID int64         `json:"data_source_id"`
}

// IsForecast reports whether the belief was formed before the event.
func (tv TimedValue) IsForecast() bool { return tv.Horizon > 0 }

// KnowledgeTime is the instant the belief was held: the event end minus the horizon.
func (tv TimedValue) KnowledgeTime(resolution time.Duration) time.Time {
	return tv.Datetime.Add(resolution - tv.Horizon)
}

// Belief is a TimedValue reduced to what the collector works with.
type Belief struct {
	EventStart time.Time
	Horizon    time.Duration
	SourceID   int64
	Value      float64
}

// BeliefSeries is an ordered set of beliefs at a fixed event resolution.
// An empty series still carries its resolution.
type BeliefSeries struct {
	Resolution time.Duration
	Beliefs    []Belief
}

func (s BeliefSeries) Len() int { return len(s.Beliefs) }

func (s BeliefSeries) Empty() bool { return len(s.Beliefs) == 0 }

// Values returns the belief values in order.
func (s BeliefSeries) Values() []float64 {
	out := make([]float64, len(s.Beliefs))
	for i, b := range s.Beliefs {
		out[i] = b.Value
	}
	return out
}
