package analytics

import (
	"context"

	"bvp/internal/domain/models"
	"bvp/internal/services/timeseries"
)

// PowerData returns the summed power of the resource's assets (in MW) and the
// power metrics (in MWh). Consumption is stored as negative production;
// showConsumptionAsPositive flips the sign of both frames.
func PowerData(ctx context.Context, src timeseries.TimeSeriesSource, assets []string, p Params, showConsumptionAsPositive bool, m models.Metrics) (Signal, models.Metrics, error) {
	realised, forecast, err := fetch(ctx, src, assets, p)
	if err != nil {
		return Signal{}, m, err
	}
	sign := 1.0
	if showConsumptionAsPositive {
		sign = -1
	}
	sig := Signal{Realised: realisedFrame(realised, sign), Forecast: forecastFrame(forecast, sign)}

	hf := HourFactor(p.Resolution)
	s := score(scale(sig.Realised.Ys(), hf), scale(sig.Forecast.YHats(), hf), NanSum)
	m.RealisedPowerMWh = s.realised
	m.ExpectedPowerMWh = s.expected
	m.MAEPowerMWh = s.mae
	m.MAPEPower = s.mape
	m.WAPEPower = s.wape
	return sig, m, nil
}
