package analytics

import (
	"math"
	"time"

	"bvp/internal/domain/models"
)

const revenueLabel = "Calculated from power and price data"

// RevenuesCostsData derives revenues (or costs) from power and prices:
// y = power * hour factor * price * unitFactor, per power timestamp. The unit
// factor converts units, e.g. 0.001 for kWh times EUR/MWh.
//
// The forecast band is yhat ± yhat * mean(WAPE power, WAPE price), so m must
// already hold the power and price metrics.
func RevenuesCostsData(power, prices Signal, p Params, unitFactor float64, m models.Metrics) (Signal, models.Metrics) {
	hf := HourFactor(p.Resolution)
	out := Signal{Realised: make(models.RealisedFrame, 0, len(power.Realised)), Forecast: make(models.ForecastFrame, 0, len(power.Realised))}

	priceAt := make(map[time.Time]models.RealisedRow, len(prices.Realised))
	for _, r := range prices.Realised {
		priceAt[r.Datetime] = r
	}

	if len(power.Realised) == 0 || len(prices.Realised) == 0 {
		m.RealisedRevenuesCosts = models.NaN()
		for _, r := range power.Realised {
			out.Realised = append(out.Realised, models.RealisedRow{Datetime: r.Datetime, Y: models.NaN()})
		}
	} else {
		for _, r := range power.Realised {
			row := models.RealisedRow{Datetime: r.Datetime, Y: models.NaN(), Horizon: r.Horizon, Label: revenueLabel}
			if pr, ok := priceAt[r.Datetime]; ok {
				row.Y = models.Float(float64(r.Y) * hf * float64(pr.Y) * unitFactor)
				if pr.Horizon < row.Horizon {
					row.Horizon = pr.Horizon
				}
			}
			out.Realised = append(out.Realised, row)
		}
		m.RealisedRevenuesCosts = models.Float(NanSum(out.Realised.Ys()))
	}

	n := len(power.Realised)
	if n == 0 || len(prices.Realised) == 0 || len(power.Forecast) == 0 || len(prices.Forecast) == 0 ||
		len(power.Forecast) != n || len(prices.Realised) != n || len(prices.Forecast) != n {
		m.ExpectedRevenuesCosts = models.NaN()
		m.MAERevenuesCosts = models.NaN()
		m.MAPERevenuesCosts = models.NaN()
		m.WAPERevenuesCosts = models.NaN()
		for _, r := range power.Realised {
			out.Forecast = append(out.Forecast, models.ForecastRow{Datetime: r.Datetime, YHat: models.NaN(), YHatUpper: models.NaN(), YHatLower: models.NaN()})
		}
		return out, m
	}

	priceForecastAt := make(map[time.Time]models.Float, n)
	for _, r := range prices.Forecast {
		priceForecastAt[r.Datetime] = r.YHat
	}
	powerForecastAt := make(map[time.Time]models.Float, n)
	for _, r := range power.Forecast {
		powerForecastAt[r.Datetime] = r.YHat
	}

	// There might be a better heuristic for this band.
	spread := (float64(m.WAPEPower)/100 + float64(m.WAPEUnitPrice)/100) / 2
	for _, r := range power.Realised {
		yhat := math.NaN()
		pf, okP := powerForecastAt[r.Datetime]
		prf, okPr := priceForecastAt[r.Datetime]
		if okP && okPr {
			yhat = float64(pf) * hf * float64(prf) * unitFactor
		}
		span := yhat * spread
		out.Forecast = append(out.Forecast, models.ForecastRow{
			Datetime:  r.Datetime,
			YHat:      models.Float(yhat),
			YHatUpper: models.Float(yhat + span),
			YHatLower: models.Float(yhat - span),
		})
	}

	realised, forecast := out.Realised.Ys(), out.Forecast.YHats()
	m.ExpectedRevenuesCosts = models.Float(NanSum(forecast))
	m.MAERevenuesCosts = models.Float(MeanAbsoluteError(realised, forecast))
	m.MAPERevenuesCosts = models.Float(MeanAbsolutePercentageError(realised, forecast))
	m.WAPERevenuesCosts = models.Float(WeightedAbsolutePercentageError(realised, forecast))
	return out, m
}
