package repository

import (
	"time"

	"bvp/internal/domain/models"
)

type assetRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:80;uniqueIndex"`
	DisplayName      string `gorm:"size:80"`
	AssetTypeName    string `gorm:"size:80;index"`
	OwnerID          int64  `gorm:"index"`
	CapacityInMW     float64
	Latitude         float64
	Longitude        float64
	EventResolutionS int64
	MarketID         int64
}

func (assetRow) TableName() string { return "asset" }

func (r assetRow) toModel() models.Asset {
	return models.Asset{
		ID:              r.ID,
		Name:            r.Name,
		DisplayName:     r.DisplayName,
		AssetType:       r.AssetTypeName,
		OwnerID:         r.OwnerID,
		CapacityMW:      r.CapacityInMW,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		EventResolution: time.Duration(r.EventResolutionS) * time.Second,
		MarketID:        r.MarketID,
	}
}

type marketRow struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	Name             string `gorm:"size:80;uniqueIndex"`
	DisplayName      string `gorm:"size:80"`
	MarketTypeName   string `gorm:"size:80"`
	Unit             string `gorm:"size:80"`
	EventResolutionS int64
}

func (marketRow) TableName() string { return "market" }

func (r marketRow) toModel() models.Market {
	return models.Market{
		ID:              r.ID,
		Name:            r.Name,
		DisplayName:     r.DisplayName,
		MarketType:      r.MarketTypeName,
		Unit:            r.Unit,
		EventResolution: time.Duration(r.EventResolutionS) * time.Second,
	}
}

type weatherSensorRow struct {
	ID                    int64  `gorm:"primaryKey;autoIncrement"`
	Name                  string `gorm:"size:80;uniqueIndex"`
	WeatherSensorTypeName string `gorm:"size:80;index"`
	Unit                  string `gorm:"size:80"`
	Latitude              float64
	Longitude             float64
	EventResolutionS      int64
}

func (weatherSensorRow) TableName() string { return "weather_sensor" }

func (r weatherSensorRow) toModel() models.WeatherSensor {
	return models.WeatherSensor{
		ID:              r.ID,
		Name:            r.Name,
		SensorType:      r.WeatherSensorTypeName,
		Unit:            r.Unit,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		EventResolution: time.Duration(r.EventResolutionS) * time.Second,
	}
}

type dataSourceRow struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Label  string `gorm:"size:80"`
	Type   string `gorm:"size:80;index"`
	UserID *int64 `gorm:"uniqueIndex"`
}

func (dataSourceRow) TableName() string { return "data_source" }

func (r dataSourceRow) toModel() models.DataSource {
	ds := models.DataSource{ID: r.ID, Label: r.Label, Type: r.Type}
	if r.UserID != nil {
		ds.UserID = *r.UserID
	}
	return ds
}

type latestTaskRunRow struct {
	Name     string `gorm:"primaryKey;size:80"`
	Datetime time.Time
	Status   bool
}

func (latestTaskRunRow) TableName() string { return "latest_task_run" }

// AutoMigrateModels lists the gorm models for AutoMigrate.
func AutoMigrateModels() []any {
	return []any{&assetRow{}, &marketRow{}, &weatherSensorRow{}, &dataSourceRow{}, &latestTaskRunRow{}}
}
