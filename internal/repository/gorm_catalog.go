package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

// GormCatalog resolves assets, markets and weather sensors from MySQL.
type GormCatalog struct {
	db *gorm.DB
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

var _ repository.Catalog = (*GormCatalog)(nil)

func (c *GormCatalog) Generic(ctx context.Context, kind models.ValueKind, name string) (models.Generic, error) {
	switch kind {
	case models.KindPower:
		a, err := c.Asset(ctx, name)
		return a.Generic(), err
	case models.KindPrice:
		m, err := c.Market(ctx, name)
		return m.Generic(), err
	case models.KindWeather:
		var row weatherSensorRow
		if err := first(c.db.WithContext(ctx).Where("name = ?", name), &row); err != nil {
			return models.Generic{}, fmt.Errorf("weather sensor %q: %w", name, err)
		}
		return row.toModel().Generic(), nil
	}
	return models.Generic{}, fmt.Errorf("unknown value kind %q", kind)
}

func (c *GormCatalog) GenericByID(ctx context.Context, kind models.ValueKind, id int64) (models.Generic, error) {
	switch kind {
	case models.KindPower:
		a, err := c.AssetByID(ctx, id)
		return a.Generic(), err
	case models.KindPrice:
		var row marketRow
		if err := first(c.db.WithContext(ctx).Where("id = ?", id), &row); err != nil {
			return models.Generic{}, fmt.Errorf("market %d: %w", id, err)
		}
		return row.toModel().Generic(), nil
	case models.KindWeather:
		var row weatherSensorRow
		if err := first(c.db.WithContext(ctx).Where("id = ?", id), &row); err != nil {
			return models.Generic{}, fmt.Errorf("weather sensor %d: %w", id, err)
		}
		return row.toModel().Generic(), nil
	}
	return models.Generic{}, fmt.Errorf("unknown value kind %q", kind)
}

func (c *GormCatalog) Asset(ctx context.Context, name string) (models.Asset, error) {
	var row assetRow
	if err := first(c.db.WithContext(ctx).Where("name = ?", name), &row); err != nil {
		return models.Asset{}, fmt.Errorf("asset %q: %w", name, err)
	}
	return row.toModel(), nil
}

func (c *GormCatalog) AssetByID(ctx context.Context, id int64) (models.Asset, error) {
	var row assetRow
	if err := first(c.db.WithContext(ctx).Where("id = ?", id), &row); err != nil {
		return models.Asset{}, fmt.Errorf("asset %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (c *GormCatalog) Assets(ctx context.Context, assetType string) ([]models.Asset, error) {
	q := c.db.WithContext(ctx).Order("id")
	if assetType != "" {
		q = q.Where("asset_type_name = ?", assetType)
	}
	var rows []assetRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	out := make([]models.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (c *GormCatalog) Market(ctx context.Context, name string) (models.Market, error) {
	var row marketRow
	if err := first(c.db.WithContext(ctx).Where("name = ?", name), &row); err != nil {
		return models.Market{}, fmt.Errorf("market %q: %w", name, err)
	}
	return row.toModel(), nil
}

func (c *GormCatalog) WeatherSensors(ctx context.Context, sensorType string) ([]models.WeatherSensor, error) {
	var rows []weatherSensorRow
	if err := c.db.WithContext(ctx).Where("weather_sensor_type_name = ?", sensorType).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s sensors: %w", sensorType, err)
	}
	out := make([]models.WeatherSensor, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// GormDataSources stores data sources in MySQL.
type GormDataSources struct {
	db *gorm.DB
}

func NewGormDataSources(db *gorm.DB) *GormDataSources {
	return &GormDataSources{db: db}
}

var _ repository.DataSources = (*GormDataSources)(nil)

func (d *GormDataSources) GetOrCreateForUser(ctx context.Context, userID int64, label string) (models.DataSource, error) {
	var row dataSourceRow
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Attrs(dataSourceRow{Label: label, Type: models.SourceTypeUser, UserID: &userID}).
		FirstOrCreate(&row).Error
	if err != nil {
		return models.DataSource{}, fmt.Errorf("data source for user %d: %w", userID, err)
	}
	return row.toModel(), nil
}

func (d *GormDataSources) GetOrCreate(ctx context.Context, label, sourceType string) (models.DataSource, error) {
	var row dataSourceRow
	err := d.db.WithContext(ctx).
		Where("label = ? AND type = ? AND user_id IS NULL", label, sourceType).
		Attrs(dataSourceRow{Label: label, Type: sourceType}).
		FirstOrCreate(&row).Error
	if err != nil {
		return models.DataSource{}, fmt.Errorf("data source %q: %w", label, err)
	}
	return row.toModel(), nil
}

func (d *GormDataSources) IDs(ctx context.Context, userIDs []int64, sourceTypes []string) ([]int64, error) {
	q := d.db.WithContext(ctx).Model(&dataSourceRow{})
	if userIDs != nil {
		if len(userIDs) == 0 {
			return []int64{}, nil
		}
		q = q.Where("user_id IN ?", userIDs)
	}
	if len(sourceTypes) > 0 {
		q = q.Where("type IN ?", sourceTypes)
	}
	var ids []int64
	if err := q.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("data source ids: %w", err)
	}
	return ids, nil
}

// GormTaskRuns keeps one row per task with its latest run.
type GormTaskRuns struct {
	db *gorm.DB
}

func NewGormTaskRuns(db *gorm.DB) *GormTaskRuns {
	return &GormTaskRuns{db: db}
}

var _ repository.TaskRuns = (*GormTaskRuns)(nil)

func (t *GormTaskRuns) Latest(ctx context.Context, name string) (models.LatestTaskRun, error) {
	var row latestTaskRunRow
	if err := first(t.db.WithContext(ctx).Where("name = ?", name), &row); err != nil {
		return models.LatestTaskRun{}, fmt.Errorf("task run %q: %w", name, err)
	}
	return models.LatestTaskRun{Name: row.Name, Datetime: row.Datetime.UTC(), Status: row.Status}, nil
}

func (t *GormTaskRuns) Save(ctx context.Context, run models.LatestTaskRun) error {
	row := latestTaskRunRow{Name: run.Name, Datetime: run.Datetime.UTC(), Status: run.Status}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save task run %q: %w", run.Name, err)
	}
	return nil
}

// first loads the first match into dest, mapping a missing record to ErrNotFound.
func first(q *gorm.DB, dest any) error {
	err := q.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}
