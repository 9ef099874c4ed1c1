package models

import "time"

// Metrics holds the realised-vs-forecast figures of one dashboard. Values are
// passed and returned by copy; NaN marks a figure that could not be computed.
type Metrics struct {
	RealisedPowerMWh      Float `json:"realised_power_in_mwh"`
	ExpectedPowerMWh      Float `json:"expected_power_in_mwh"`
	MAEPowerMWh           Float `json:"mae_power_in_mwh"`
	MAPEPower             Float `json:"mape_power"`
	WAPEPower             Float `json:"wape_power"`
	RealisedUnitPrice     Float `json:"realised_unit_price"`
	ExpectedUnitPrice     Float `json:"expected_unit_price"`
	MAEUnitPrice          Float `json:"mae_unit_price"`
	MAPEUnitPrice         Float `json:"mape_unit_price"`
	WAPEUnitPrice         Float `json:"wape_unit_price"`
	RealisedWeather       Float `json:"realised_weather"`
	ExpectedWeather       Float `json:"expected_weather"`
	MAEWeather            Float `json:"mae_weather"`
	MAPEWeather           Float `json:"mape_weather"`
	WAPEWeather           Float `json:"wape_weather"`
	RealisedRevenuesCosts Float `json:"realised_revenues_costs"`
	ExpectedRevenuesCosts Float `json:"expected_revenues_costs"`
	MAERevenuesCosts      Float `json:"mae_revenues_costs"`
	MAPERevenuesCosts     Float `json:"mape_revenues_costs"`
	WAPERevenuesCosts     Float `json:"wape_revenues_costs"`
}

// NewMetrics returns metrics with every figure set to NaN.
func NewMetrics() Metrics {
	n := NaN()
	return Metrics{
		RealisedPowerMWh: n, ExpectedPowerMWh: n, MAEPowerMWh: n, MAPEPower: n, WAPEPower: n,
		RealisedUnitPrice: n, ExpectedUnitPrice: n, MAEUnitPrice: n, MAPEUnitPrice: n, WAPEUnitPrice: n,
		RealisedWeather: n, ExpectedWeather: n, MAEWeather: n, MAPEWeather: n, WAPEWeather: n,
		RealisedRevenuesCosts: n, ExpectedRevenuesCosts: n, MAERevenuesCosts: n, MAPERevenuesCosts: n, WAPERevenuesCosts: n,
	}
}

// Fields returns the metrics keyed by their JSON names, for exporters.
func (m Metrics) Fields() map[string]float64 {
	return map[string]float64{
		"realised_power_in_mwh":   float64(m.RealisedPowerMWh),
		"expected_power_in_mwh":   float64(m.ExpectedPowerMWh),
		"mae_power_in_mwh":        float64(m.MAEPowerMWh),
		"mape_power":              float64(m.MAPEPower),
		"wape_power":              float64(m.WAPEPower),
		"realised_unit_price":     float64(m.RealisedUnitPrice),
		"expected_unit_price":     float64(m.ExpectedUnitPrice),
		"mae_unit_price":          float64(m.MAEUnitPrice),
		"mape_unit_price":         float64(m.MAPEUnitPrice),
		"wape_unit_price":         float64(m.WAPEUnitPrice),
		"realised_weather":        float64(m.RealisedWeather),
		"expected_weather":        float64(m.ExpectedWeather),
		"mae_weather":             float64(m.MAEWeather),
		"mape_weather":            float64(m.MAPEWeather),
		"wape_weather":            float64(m.WAPEWeather),
		"realised_revenues_costs": float64(m.RealisedRevenuesCosts),
		"expected_revenues_costs": float64(m.ExpectedRevenuesCosts),
		"mae_revenues_costs":      float64(m.MAERevenuesCosts),
		"mape_revenues_costs":     float64(m.MAPERevenuesCosts),
		"wape_revenues_costs":     float64(m.WAPERevenuesCosts),
	}
}

// RealisedRow is one row of a realised ("y") frame.
type RealisedRow struct {
	Datetime time.Time `json:"datetime"`
	Y        Float     `json:"y"`
	Horizon  Duration  `json:"horizon"`
	Label    string    `json:"label,omitempty"`
}

// ForecastRow is one row of a forecast frame with its confidence band.
type ForecastRow struct {
	Datetime  time.Time `json:"datetime"`
	YHat      Float     `json:"yhat"`
	YHatUpper Float     `json:"yhat_upper"`
	YHatLower Float     `json:"yhat_lower"`
}

// RealisedFrame and ForecastFrame are empty (not nil) when there is no data,
// so they encode as [] rather than null.
type RealisedFrame []RealisedRow

type ForecastFrame []ForecastRow

// Ys returns the realised values.
func (f RealisedFrame) Ys() []float64 {
	out := make([]float64, len(f))
	for i, r := range f {
		out[i] = float64(r.Y)
	}
	return out
}

// YHats returns the forecast values.
func (f ForecastFrame) YHats() []float64 {
	out := make([]float64, len(f))
	for i, r := range f {
		out[i] = float64(r.YHat)
	}
	return out
}
