package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
	"bvp/pkg/cache"
	"bvp/pkg/logger"
	"bvp/pkg/queue"
)

// ForecastingJobType is the queue message type of forecasting jobs.
const ForecastingJobType = "forecasting"

// ForecastingArgs asks for forecasts of one asset for events in [Start, End)
// made Horizon ahead of each event.
type ForecastingArgs struct {
	Horizon        models.Duration `json:"horizon"`
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	TimedValueType string          `json:"timed_value_type"`
	AssetID        int64           `json:"asset_id"`
}

// NewForecastingArgs builds the job for new data in [start, end): the events
// that data helps to forecast lie one horizon later.
func NewForecastingArgs(kind models.ValueKind, assetID int64, start, end time.Time, horizon time.Duration) ForecastingArgs {
	return ForecastingArgs{
		Horizon:        models.Duration(horizon),
		Start:          start.Add(horizon),
		End:            end.Add(horizon),
		TimedValueType: kind.TimedValueType(),
		AssetID:        assetID,
	}
}

// ForecastingJob writes seasonal naive forecasts: each event is forecast with
// the realised value of the same time of day, as many whole days earlier as
// needed for that value to be known at issuance.
type ForecastingJob struct {
	sources     map[models.ValueKind]timeseries.TimeSeriesSource
	catalog     drepo.Catalog
	dataSources drepo.DataSources
	out         BatchProcessor
	cache       cache.Service
	log         *logger.Logger
}

var _ queue.Job = (*ForecastingJob)(nil)

func NewForecastingJob(
	sources []timeseries.TimeSeriesSource,
	catalog drepo.Catalog,
	dataSources drepo.DataSources,
	out BatchProcessor,
	log *logger.Logger,
) *ForecastingJob {
	byKind := make(map[models.ValueKind]timeseries.TimeSeriesSource, len(sources))
	for _, s := range sources {
		byKind[s.Kind()] = s
	}
	return &ForecastingJob{sources: byKind, catalog: catalog, dataSources: dataSources, out: out, log: log}
}

// WithAnalyticsCache makes every stored batch of forecasts drop the cached
// dashboards.
func (j *ForecastingJob) WithAnalyticsCache(c cache.Service) *ForecastingJob {
	j.cache = c
	return j
}

func (j *ForecastingJob) Name() string { return "seasonal-naive-forecaster" }

func (j *ForecastingJob) Type() string { return ForecastingJobType }

func (j *ForecastingJob) Handle(ctx context.Context, payload json.RawMessage) error {
	args, err := queue.Decode[ForecastingArgs](payload)
	if err != nil {
		return queue.Permanent(fmt.Errorf("forecasting payload: %w", err))
	}
	values, err := j.Forecast(ctx, *args)
	if err != nil {
		return err
	}
	if err := j.out.ProcessBatch(ctx, values); err != nil {
		return fmt.Errorf("store forecasts: %w", err)
	}
	if len(values) > 0 {
		invalidateAnalytics(ctx, j.cache, j.log)
	}
	j.log.Info("forecasts stored",
		logger.String("type", args.TimedValueType),
		logger.Int64("asset_id", args.AssetID),
		logger.Duration("horizon", time.Duration(args.Horizon)),
		logger.Int("values", len(values)))
	return nil
}

// Forecast computes the forecasts without storing them.
func (j *ForecastingJob) Forecast(ctx context.Context, args ForecastingArgs) ([]models.TimedValue, error) {
	kind, ok := models.ParseTimedValueType(args.TimedValueType)
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("unknown timed value type %q", args.TimedValueType))
	}
	src, ok := j.sources[kind]
	if !ok {
		return nil, queue.Permanent(fmt.Errorf("no source for %s", kind))
	}
	g, err := j.catalog.GenericByID(ctx, kind, args.AssetID)
	if errors.Is(err, drepo.ErrNotFound) {
		return nil, queue.Permanent(fmt.Errorf("forecast %s %d: %w", kind, args.AssetID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("forecast %s %d: %w", kind, args.AssetID, err)
	}
	res := g.EventResolution
	if res <= 0 {
		res = 15 * time.Minute
	}

	horizon := time.Duration(args.Horizon)
	lag := seasonalLag(horizon)
	history, err := src.Collect(ctx, []string{g.Name}, timeseries.CollectOptions{
		QueryOptions: timeseries.QueryOptions{
			Window:   drepo.Window{Start: args.Start.Add(-lag), End: args.End.Add(-lag)},
			Horizons: drepo.RealisedHorizons(),
			Rolling:  true,
		},
		Resolution: res,
	})
	if err != nil {
		return nil, fmt.Errorf("collect history: %w", err)
	}
	if history.Empty() {
		return []models.TimedValue{}, nil
	}

	source, err := j.dataSources.GetOrCreate(ctx, models.SeasonalNaiveModelTag, models.SourceTypeForecaster)
	if err != nil {
		return nil, fmt.Errorf("forecaster data source: %w", err)
	}

	out := make([]models.TimedValue, 0, history.Len())
	for _, b := range history.Beliefs {
		out = append(out, models.TimedValue{
			Kind:         kind,
			AssetID:      g.ID,
			Datetime:     b.EventStart.Add(lag),
			Horizon:      horizon,
			Value:        b.Value,
			DataSourceID: source.ID,
		})
	}
	return out, nil
}

// seasonalLag is the smallest positive whole number of days not shorter than horizon.
func seasonalLag(horizon time.Duration) time.Duration {
	const day = 24 * time.Hour
	if horizon <= day {
		return day
	}
	days := (horizon + day - 1) / day
	return days * day
}
