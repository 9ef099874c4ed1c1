package analytics

import (
	"context"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
)

// Sources bundles the time series sources a dashboard reads from.
type Sources struct {
	Power   timeseries.TimeSeriesSource
	Prices  timeseries.TimeSeriesSource
	Weather timeseries.TimeSeriesSource
	Catalog repository.Catalog
}

type DashboardRequest struct {
	Params
	Assets                    []models.Asset
	Market                    string
	SensorType                string
	UnitFactor                float64
	ShowConsumptionAsPositive bool
}

// Report is everything the analytics page renders.
type Report struct {
	Power         Signal         `json:"power"`
	Prices        Signal         `json:"prices"`
	Weather       WeatherSignal  `json:"weather"`
	RevenuesCosts Signal         `json:"revenues_costs"`
	Metrics       models.Metrics `json:"metrics"`
}

// Dashboard runs the power, prices, weather and revenues/costs steps in order,
// threading the metrics through each of them.
func Dashboard(ctx context.Context, src Sources, req DashboardRequest) (Report, error) {
	var (
		r   Report
		err error
	)
	m := models.NewMetrics()

	names := make([]string, len(req.Assets))
	for i, a := range req.Assets {
		names[i] = a.Name
	}

	if r.Power, m, err = PowerData(ctx, src.Power, names, req.Params, req.ShowConsumptionAsPositive, m); err != nil {
		return Report{}, err
	}
	if r.Prices, m, err = PricesData(ctx, src.Prices, req.Market, req.Params, m); err != nil {
		return Report{}, err
	}
	if r.Weather, m, err = WeatherData(ctx, src.Weather, src.Catalog, req.Assets, req.SensorType, req.Params, m); err != nil {
		return Report{}, err
	}
	r.RevenuesCosts, m = RevenuesCostsData(r.Power, r.Prices, req.Params, req.UnitFactor, m)
	r.Metrics = m
	return r, nil
}
