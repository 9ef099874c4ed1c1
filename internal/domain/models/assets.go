package models

import "time"

// Asset is a generic power asset (solar, wind, battery, building, charging station).
type Asset struct {
	ID              int64
	Name            string
	DisplayName     string
	AssetType       string
	OwnerID         int64
	CapacityMW      float64
	Latitude        float64
	Longitude       float64
	EventResolution time.Duration
	MarketID        int64
}

type Market struct {
	ID              int64
	Name            string
	DisplayName     string
	MarketType      string
	Unit            string
	EventResolution time.Duration
}

type WeatherSensor struct {
	ID              int64
	Name            string
	SensorType      string
	Unit            string
	Latitude        float64
	Longitude       float64
	EventResolution time.Duration
}

// DataSource records the provenance of timed values; user-posted data has UserID set.
type DataSource struct {
	ID     int64
	Label  string
	Type   string
	UserID int64
}

const (
	SourceTypeUser        = "user"
	SourceTypeForecaster  = "forecasting script"
	SourceTypeScheduler   = "scheduling script"
	SourceTypeCrawler     = "crawling script"
	SeasonalNaiveModelTag = "Seasonal naive model"
)

// LatestTaskRun is the heartbeat of a periodic task.
type LatestTaskRun struct {
	Name     string    `json:"name"`
	Datetime time.Time `json:"datetime"`
	Status   bool      `json:"status"`
}

// Generic identifies an entity owning timed values, independent of its kind.
type Generic struct {
	Kind            ValueKind
	ID              int64
	Name            string
	EventResolution time.Duration
}

func (a Asset) Generic() Generic {
	return Generic{Kind: KindPower, ID: a.ID, Name: a.Name, EventResolution: a.EventResolution}
}

func (m Market) Generic() Generic {
	return Generic{Kind: KindPrice, ID: m.ID, Name: m.Name, EventResolution: m.EventResolution}
}

func (s WeatherSensor) Generic() Generic {
	return Generic{Kind: KindWeather, ID: s.ID, Name: s.Name, EventResolution: s.EventResolution}
}
