package analytics

import (
	"context"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
)

// Params are the request-scoped settings every analytics call needs.
type Params struct {
	Window          repository.Window
	Resolution      time.Duration
	ForecastHorizon time.Duration
}

// Signal is the realised and forecast data of one quantity.
type Signal struct {
	Realised models.RealisedFrame `json:"realised"`
	Forecast models.ForecastFrame `json:"forecast"`
}

// metricSet is the four accuracy figures plus the realised level of one signal.
type metricSet struct {
	realised, expected, mae, mape, wape models.Float
}

// fetch collects the realised series, horizons (nil, 0), and the forecast
// series, horizons (ForecastHorizon, nil), both rolling.
func fetch(ctx context.Context, src timeseries.TimeSeriesSource, names []string, p Params) (models.BeliefSeries, models.BeliefSeries, error) {
	opts := timeseries.CollectOptions{
		QueryOptions: timeseries.QueryOptions{
			Window:   p.Window,
			Horizons: repository.RealisedHorizons(),
			Rolling:  true,
		},
		Resolution:    p.Resolution,
		CreateIfEmpty: true,
	}
	realised, err := src.Collect(ctx, names, opts)
	if err != nil {
		return models.BeliefSeries{}, models.BeliefSeries{}, fmt.Errorf("collect realised %s: %w", src.Kind(), err)
	}
	opts.Horizons = repository.ForecastHorizons(p.ForecastHorizon)
	forecast, err := src.Collect(ctx, names, opts)
	if err != nil {
		return models.BeliefSeries{}, models.BeliefSeries{}, fmt.Errorf("collect forecast %s: %w", src.Kind(), err)
	}
	return realised, forecast, nil
}

func realisedFrame(s models.BeliefSeries, factor float64) models.RealisedFrame {
	out := make(models.RealisedFrame, 0, s.Len())
	for _, b := range s.Beliefs {
		out = append(out, models.RealisedRow{Datetime: b.EventStart, Y: models.Float(b.Value * factor), Horizon: models.Duration(b.Horizon)})
	}
	return out
}

func forecastFrame(s models.BeliefSeries, factor float64) models.ForecastFrame {
	out := make(models.ForecastFrame, 0, s.Len())
	for _, b := range s.Beliefs {
		out = append(out, models.ForecastRow{Datetime: b.EventStart, YHat: models.Float(b.Value * factor), YHatUpper: models.NaN(), YHatLower: models.NaN()})
	}
	return out
}

// score computes the metrics of realised vs forecast values. level reduces a
// series to its headline figure (a total or an average).
func score(realised, forecast []float64, level func([]float64) float64) metricSet {
	m := metricSet{realised: models.NaN(), expected: models.NaN(), mae: models.NaN(), mape: models.NaN(), wape: models.NaN()}
	if len(realised) > 0 {
		m.realised = models.Float(level(realised))
	}
	if len(realised) == 0 || len(forecast) == 0 || len(realised) != len(forecast) {
		return m
	}
	m.expected = models.Float(level(forecast))
	m.mae = models.Float(MeanAbsoluteError(realised, forecast))
	m.mape = models.Float(MeanAbsolutePercentageError(realised, forecast))
	m.wape = models.Float(WeightedAbsolutePercentageError(realised, forecast))
	return m
}
