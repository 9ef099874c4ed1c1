package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
	"bvp/pkg/cache"
	"bvp/pkg/logger"
	"bvp/pkg/queue"
)

const (
	unitPrice = "EUR/MWh"
	unitPower = "MW"

	// AnalyticsCachePrefix starts the key of every cached dashboard report.
	AnalyticsCachePrefix = "analytics:"
)

// weatherUnits is the accepted unit per weather sensor type.
var weatherUnits = map[string]string{
	"wind_speed":  "m/s",
	"temperature": "°C",
	"radiation":   "kW/m²",
}

// Series is a run of values spread evenly over [Start, End), all believed
// Horizon ahead of the end of the run (or of each event when Rolling).
type Series struct {
	Start   time.Time
	End     time.Time
	Values  []float64
	Horizon time.Duration
	Rolling bool
}

// Resolution is the event length implied by the period and value count.
func (s Series) Resolution() time.Duration {
	if len(s.Values) == 0 {
		return 0
	}
	return s.End.Sub(s.Start) / time.Duration(len(s.Values))
}

// TimedValues expands the run into beliefs. A non-rolling horizon is relative
// to the end of the whole run, so each value's own horizon shrinks towards it.
func (s Series) TimedValues(kind models.ValueKind, assetID, sourceID int64) []models.TimedValue {
	res := s.Resolution()
	out := make([]models.TimedValue, 0, len(s.Values))
	for i, v := range s.Values {
		dt := s.Start.Add(time.Duration(i) * res)
		h := s.Horizon
		if !s.Rolling {
			h = s.Horizon - s.End.Sub(dt.Add(res))
		}
		out = append(out, models.TimedValue{
			Kind:         kind,
			AssetID:      assetID,
			Datetime:     dt,
			Horizon:      h,
			Value:        v,
			DataSourceID: sourceID,
		})
	}
	return out
}

// SensorRef locates a weather sensor by type and coordinates.
type SensorRef struct {
	Type      string
	Latitude  float64
	Longitude float64
}

// ConnectionRef addresses an asset of an owner.
type ConnectionRef struct {
	OwnerID int64
	AssetID int64
}

type WeatherPost struct {
	Sensor SensorRef
	Series Series
}

type MeterPost struct {
	Connection ConnectionRef
	Series     Series
}

// ForecastHorizons lists the horizons to forecast after new data of each kind.
type ForecastHorizons struct {
	Price   []time.Duration
	Weather []time.Duration
	Power   []time.Duration
}

// DataIngest stores posted prices, weather and meter data and schedules
// forecasts on the new data.
type DataIngest struct {
	catalog     drepo.Catalog
	dataSources drepo.DataSources
	proc        BatchProcessor
	jobs        queue.Publisher
	cache       cache.Service
	horizons    ForecastHorizons
	log         *logger.Logger
}

// NewDataIngest wires the ingestion service. jobs and c may be nil.
func NewDataIngest(
	catalog drepo.Catalog,
	dataSources drepo.DataSources,
	proc BatchProcessor,
	jobs queue.Publisher,
	c cache.Service,
	horizons ForecastHorizons,
	log *logger.Logger,
) *DataIngest {
	return &DataIngest{
		catalog:     catalog,
		dataSources: dataSources,
		proc:        proc,
		jobs:        jobs,
		cache:       c,
		horizons:    horizons,
		log:         log,
	}
}

// PostPrices stores the prices of one market.
func (d *DataIngest) PostPrices(ctx context.Context, userID int64, marketName, unit string, s Series) error {
	market, err := d.catalog.Market(ctx, marketName)
	if errors.Is(err, drepo.ErrNotFound) {
		return Reject(StatusUnrecognizedMarket, "No market is known by the name %s.", marketName)
	}
	if err != nil {
		return fmt.Errorf("look up market %q: %w", marketName, err)
	}
	if unit != unitPrice {
		return InvalidUnit(market.DisplayName+" prices", unitPrice)
	}
	if err := checkSeries(s); err != nil {
		return err
	}

	src, err := d.userSource(ctx, userID)
	if err != nil {
		return err
	}
	if err := d.proc.ProcessBatch(ctx, s.TimedValues(models.KindPrice, market.ID, src.ID)); err != nil {
		return fmt.Errorf("store prices: %w", err)
	}

	d.scheduleForecasts(ctx, models.KindPrice, market.ID, s, d.horizons.Price)
	invalidateAnalytics(ctx, d.cache, d.log)
	return nil
}

// PostWeather stores the values of weather sensors. All posts are checked
// before anything is stored.
func (d *DataIngest) PostWeather(ctx context.Context, userID int64, unit string, posts []WeatherPost) error {
	type resolved struct {
		sensor models.WeatherSensor
		series Series
	}
	batch := make([]resolved, 0, len(posts))
	for _, p := range posts {
		want, ok := weatherUnits[p.Sensor.Type]
		if !ok {
			return Reject(StatusUnrecognizedSensor, "Sensor type %s is not supported.", p.Sensor.Type)
		}
		if unit != want {
			return InvalidUnit(strings.ReplaceAll(p.Sensor.Type, "_", " "), want)
		}
		if err := checkSeries(p.Series); err != nil {
			return err
		}
		sensor, err := d.findSensor(ctx, p.Sensor)
		if err != nil {
			return err
		}
		batch = append(batch, resolved{sensor: sensor, series: p.Series})
	}

	src, err := d.userSource(ctx, userID)
	if err != nil {
		return err
	}
	var values []models.TimedValue
	for _, r := range batch {
		values = append(values, r.series.TimedValues(models.KindWeather, r.sensor.ID, src.ID)...)
	}
	if err := d.proc.ProcessBatch(ctx, values); err != nil {
		return fmt.Errorf("store weather: %w", err)
	}

	for _, r := range batch {
		d.scheduleForecasts(ctx, models.KindWeather, r.sensor.ID, r.series, d.horizons.Weather)
	}
	invalidateAnalytics(ctx, d.cache, d.log)
	return nil
}

// PostMeter stores power measurements of the user's own connections.
func (d *DataIngest) PostMeter(ctx context.Context, userID int64, unit string, posts []MeterPost) error {
	if unit != unitPower {
		return InvalidUnit("power", unitPower)
	}
	assets := make([]models.Asset, 0, len(posts))
	for _, p := range posts {
		if err := checkSeries(p.Series); err != nil {
			return err
		}
		a, err := d.connection(ctx, userID, p.Connection)
		if err != nil {
			return err
		}
		assets = append(assets, a)
	}

	src, err := d.userSource(ctx, userID)
	if err != nil {
		return err
	}
	var values []models.TimedValue
	for i, p := range posts {
		values = append(values, p.Series.TimedValues(models.KindPower, assets[i].ID, src.ID)...)
	}
	if err := d.proc.ProcessBatch(ctx, values); err != nil {
		return fmt.Errorf("store meter data: %w", err)
	}

	for i, p := range posts {
		d.scheduleForecasts(ctx, models.KindPower, assets[i].ID, p.Series, d.horizons.Power)
	}
	invalidateAnalytics(ctx, d.cache, d.log)
	return nil
}

// connection resolves an address to an asset owned by the user it names.
func (d *DataIngest) connection(ctx context.Context, userID int64, ref ConnectionRef) (models.Asset, error) {
	a, err := d.catalog.AssetByID(ctx, ref.AssetID)
	if errors.Is(err, drepo.ErrNotFound) || (err == nil && (a.OwnerID != ref.OwnerID || a.OwnerID != userID)) {
		return models.Asset{}, Reject(StatusUnrecognizedAsset, "Connection %d:%d is not known to you.", ref.OwnerID, ref.AssetID)
	}
	if err != nil {
		return models.Asset{}, fmt.Errorf("look up asset %d: %w", ref.AssetID, err)
	}
	return a, nil
}

// findSensor picks the sensor of the type registered at the given location.
func (d *DataIngest) findSensor(ctx context.Context, ref SensorRef) (models.WeatherSensor, error) {
	sensors, err := d.catalog.WeatherSensors(ctx, ref.Type)
	if err != nil {
		return models.WeatherSensor{}, fmt.Errorf("list %s sensors: %w", ref.Type, err)
	}
	const tolerance = 1e-4
	for _, s := range sensors {
		if math.Abs(s.Latitude-ref.Latitude) < tolerance && math.Abs(s.Longitude-ref.Longitude) < tolerance {
			return s, nil
		}
	}
	return models.WeatherSensor{}, Reject(StatusUnrecognizedSensor,
		"No %s sensor is known at latitude %v and longitude %v.", ref.Type, ref.Latitude, ref.Longitude)
}

func (d *DataIngest) userSource(ctx context.Context, userID int64) (models.DataSource, error) {
	src, err := d.dataSources.GetOrCreateForUser(ctx, userID, fmt.Sprintf("user %d", userID))
	if err != nil {
		return models.DataSource{}, fmt.Errorf("data source for user %d: %w", userID, err)
	}
	return src, nil
}

// scheduleForecasts enqueues one job per horizon. Failures are logged only:
// the data is already stored.
func (d *DataIngest) scheduleForecasts(ctx context.Context, kind models.ValueKind, assetID int64, s Series, horizons []time.Duration) {
	if d.jobs == nil {
		return
	}
	for _, h := range horizons {
		args := NewForecastingArgs(kind, assetID, s.Start, s.End, h)
		if err := d.jobs.PublishMessage(ctx, ForecastingJobType, args); err != nil {
			d.log.Error("enqueue forecasting job",
				logger.String("type", args.TimedValueType),
				logger.Int64("asset_id", assetID),
				logger.Duration("horizon", h),
				logger.Error(err))
		}
	}
}

// invalidateAnalytics drops every cached dashboard after new data was stored.
func invalidateAnalytics(ctx context.Context, c cache.Service, log *logger.Logger) {
	if c == nil {
		return
	}
	if err := c.DeleteByPattern(ctx, cache.Pattern(AnalyticsCachePrefix)); err != nil {
		log.Warn("invalidate analytics cache", logger.Error(err))
	}
}

func checkSeries(s Series) error {
	if len(s.Values) == 0 || !s.End.After(s.Start) {
		return Reject(StatusUnrecognizedRequest, "No values given for a non-empty period.")
	}
	res := s.Resolution()
	if res <= 0 || res%(15*time.Minute) != 0 || s.End.Sub(s.Start)%time.Duration(len(s.Values)) != 0 {
		return InvalidResolution()
	}
	return nil
}
