package models

import "encoding/json"

// Messages of the BVP web API. Entity addresses and values may be given as a
// single item or a list, under a singular or plural key.

// EntityGroup pairs entity addresses with the values posted for them.
type EntityGroup struct {
	Sensor      json.RawMessage `json:"sensor,omitempty"`
	Sensors     json.RawMessage `json:"sensors,omitempty"`
	Connection  json.RawMessage `json:"connection,omitempty"`
	Connections json.RawMessage `json:"connections,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Values      json.RawMessage `json:"values,omitempty"`
}

type PostPriceDataRequest struct {
	Type     string    `json:"type" validate:"required,eq=PostPriceDataRequest"`
	Market   string    `json:"market" validate:"required"`
	Values   []float64 `json:"values" validate:"required,min=1"`
	Start    string    `json:"start" validate:"required,tz"`
	Duration string    `json:"duration" validate:"required,iso8601"`
	Horizon  string    `json:"horizon" validate:"required,iso8601"`
	Unit     string    `json:"unit" validate:"required"`
}

// GroupedPost is the body shared by weather and meter posts. Top-level
// addresses and values form a single group when Groups is empty.
type GroupedPost struct {
	EntityGroup
	Groups   []EntityGroup `json:"groups,omitempty"`
	Start    string        `json:"start" validate:"required,tz"`
	Duration string        `json:"duration" validate:"required,iso8601"`
	Horizon  string        `json:"horizon" default:"PT0S" validate:"omitempty,iso8601"`
	Unit     string        `json:"unit" validate:"required"`
}

type PostWeatherDataRequest struct {
	Type string `json:"type" validate:"required,eq=PostWeatherDataRequest"`
	GroupedPost
}

type PostMeterDataRequest struct {
	Type string `json:"type" validate:"required,eq=PostMeterDataRequest"`
	GroupedPost
}

type GetMeterDataRequest struct {
	Type        string   `query:"type" validate:"omitempty,eq=GetMeterDataRequest"`
	Connection  []string `query:"connection"`
	Connections []string `query:"connections"`
	Start       string   `query:"start" validate:"required,tz"`
	Duration    string   `query:"duration" validate:"required,iso8601"`
	Resolution  string   `query:"resolution" validate:"omitempty,iso8601"`
	Horizon     string   `query:"horizon" validate:"omitempty,iso8601"`
	Unit        string   `query:"unit" default:"MW"`
}

type GetPrognosisRequest struct {
	Type        string   `query:"type" validate:"omitempty,eq=GetPrognosisRequest"`
	Connection  []string `query:"connection"`
	Connections []string `query:"connections"`
	Start       string   `query:"start" validate:"required,tz"`
	Duration    string   `query:"duration" validate:"required,iso8601"`
	Resolution  string   `query:"resolution" validate:"omitempty,iso8601"`
	Horizon     string   `query:"horizon" validate:"required,iso8601"`
	Unit        string   `query:"unit" default:"MW"`
}

// AnalyticsRequest selects a dashboard. Empty durations fall back to the
// configured defaults.
type AnalyticsRequest struct {
	Resource              string  `query:"resource"`
	Market                string  `query:"market"`
	SensorType            string  `query:"sensor_type" default:"wind_speed"`
	Start                 string  `query:"start" validate:"required"`
	End                   string  `query:"end" validate:"required"`
	Resolution            string  `query:"resolution" validate:"omitempty,iso8601"`
	ForecastHorizon       string  `query:"forecast_horizon" validate:"omitempty,iso8601"`
	UnitFactor            string  `query:"unit_factor" default:"1"`
	ConsumptionAsPositive bool    `query:"consumption_as_positive"`
}
