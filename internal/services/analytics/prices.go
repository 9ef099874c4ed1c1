package analytics

import (
	"context"

	"bvp/internal/domain/models"
	"bvp/internal/services/timeseries"
)

// PricesData returns the market's prices and the unit price metrics.
func PricesData(ctx context.Context, src timeseries.TimeSeriesSource, market string, p Params, m models.Metrics) (Signal, models.Metrics, error) {
	realised, forecast, err := fetch(ctx, src, []string{market}, p)
	if err != nil {
		return Signal{}, m, err
	}
	sig := Signal{Realised: realisedFrame(realised, 1), Forecast: forecastFrame(forecast, 1)}

	s := score(sig.Realised.Ys(), sig.Forecast.YHats(), NanMean)
	m.RealisedUnitPrice = s.realised
	m.ExpectedUnitPrice = s.expected
	m.MAEUnitPrice = s.mae
	m.MAPEUnitPrice = s.mape
	m.WAPEUnitPrice = s.wape
	return sig, m, nil
}
