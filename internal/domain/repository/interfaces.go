package repository

import (
	"context"
	"errors"
	"time"

	"bvp/internal/domain/models"
)

// ErrNotFound is returned by lookups for entities that do not exist.
var ErrNotFound = errors.New("not found")

// BeliefStore persists timed values, one table per value kind.
type BeliefStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Query(ctx context.Context, q BeliefQuery) ([]models.TimedValue, error)
	StoreBatch(ctx context.Context, values []models.TimedValue) error
	Health(ctx context.Context) error
	Close() error
}

// Catalog resolves the named entities that own timed values.
type Catalog interface {
	Generic(ctx context.Context, kind models.ValueKind, name string) (models.Generic, error)
	GenericByID(ctx context.Context, kind models.ValueKind, id int64) (models.Generic, error)
	Asset(ctx context.Context, name string) (models.Asset, error)
	AssetByID(ctx context.Context, id int64) (models.Asset, error)
	// Assets lists assets of one type, or all assets when assetType is empty.
	Assets(ctx context.Context, assetType string) ([]models.Asset, error)
	Market(ctx context.Context, name string) (models.Market, error)
	// WeatherSensors lists sensors of one type, for nearest-sensor lookups.
	WeatherSensors(ctx context.Context, sensorType string) ([]models.WeatherSensor, error)
}

// DataSources manages provenance records.
type DataSources interface {
	GetOrCreateForUser(ctx context.Context, userID int64, label string) (models.DataSource, error)
	GetOrCreate(ctx context.Context, label, sourceType string) (models.DataSource, error)
	// IDs returns the ids of sources owned by any of userIDs (all users when nil)
	// and of any of sourceTypes (all types when empty).
	IDs(ctx context.Context, userIDs []int64, sourceTypes []string) ([]int64, error)
}

// TaskRuns stores the latest heartbeat per task.
type TaskRuns interface {
	Latest(ctx context.Context, name string) (models.LatestTaskRun, error)
	Save(ctx context.Context, run models.LatestTaskRun) error
}

// Publisher forwards timed values to a stream instead of storing them.
type Publisher interface {
	PublishBatch(ctx context.Context, values []models.TimedValue) error
	Close() error
}

// MetricsSink exports computed dashboard metrics.
type MetricsSink interface {
	WriteMetrics(ctx context.Context, resource string, at time.Time, m models.Metrics) error
}

type Metrics interface {
	RecordValuesStored(backend string, kind models.ValueKind, n int)
	RecordError(kind string)
	RecordLastValue(kind models.ValueKind, asset string, value float64)
	RecordLatency(op string, seconds float64)
}
