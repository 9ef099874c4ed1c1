package analytics

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
)

var t0 = time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC)

// stubSource serves fixed realised and forecast series per asset name.
type stubSource struct {
	kind     models.ValueKind
	realised map[string][]float64
	forecast map[string][]float64
	res      time.Duration
	calls    []timeseries.CollectOptions
}

func (s *stubSource) Kind() models.ValueKind { return s.kind }

func (s *stubSource) Query(context.Context, string, timeseries.QueryOptions) ([]models.TimedValue, error) {
	return nil, nil
}

func (s *stubSource) Collect(_ context.Context, names []string, opts timeseries.CollectOptions) (models.BeliefSeries, error) {
	s.calls = append(s.calls, opts)
	data, horizon := s.realised, time.Duration(0)
	if opts.Horizons.Short != nil {
		data, horizon = s.forecast, *opts.Horizons.Short
	}
	var sum []float64
	for _, n := range names {
		for i, v := range data[n] {
			if i >= len(sum) {
				sum = append(sum, 0)
			}
			sum[i] += v
		}
	}
	out := models.BeliefSeries{Resolution: s.res, Beliefs: []models.Belief{}}
	for i, v := range sum {
		out.Beliefs = append(out.Beliefs, models.Belief{EventStart: t0.Add(time.Duration(i) * s.res), Horizon: horizon, Value: v})
	}
	return out, nil
}

func (s *stubSource) CollectEach(ctx context.Context, names []string, opts timeseries.CollectOptions) (map[string]models.BeliefSeries, error) {
	out := map[string]models.BeliefSeries{}
	for _, n := range names {
		series, _ := s.Collect(ctx, []string{n}, opts)
		out[n] = series
	}
	return out, nil
}

type sensorCatalog struct {
	sensors []models.WeatherSensor
}

func (c sensorCatalog) Generic(context.Context, models.ValueKind, string) (models.Generic, error) {
	return models.Generic{}, repository.ErrNotFound
}

func (c sensorCatalog) GenericByID(context.Context, models.ValueKind, int64) (models.Generic, error) {
	return models.Generic{}, repository.ErrNotFound
}

func (c sensorCatalog) Asset(context.Context, string) (models.Asset, error) {
	return models.Asset{}, repository.ErrNotFound
}

func (c sensorCatalog) AssetByID(context.Context, int64) (models.Asset, error) {
	return models.Asset{}, repository.ErrNotFound
}

func (c sensorCatalog) Assets(context.Context, string) ([]models.Asset, error) {
	return nil, nil
}

func (c sensorCatalog) Market(context.Context, string) (models.Market, error) {
	return models.Market{}, repository.ErrNotFound
}

func (c sensorCatalog) WeatherSensors(_ context.Context, sensorType string) ([]models.WeatherSensor, error) {
	var out []models.WeatherSensor
	for _, s := range c.sensors {
		if s.SensorType == sensorType {
			out = append(out, s)
		}
	}
	return out, nil
}

func hourly() Params {
	return Params{
		Window:          repository.Window{Start: t0, End: t0.Add(2 * time.Hour)},
		Resolution:      time.Hour,
		ForecastHorizon: 6 * time.Hour,
	}
}

func TestCalculations(t *testing.T) {
	r, f := []float64{10, 20}, []float64{12, 18}
	assert.InDelta(t, 2.0, MeanAbsoluteError(r, f), 1e-9)
	assert.InDelta(t, 4.0/30*100, WeightedAbsolutePercentageError(r, f), 1e-9)
	assert.InDelta(t, (0.2+0.1)/2*100, MeanAbsolutePercentageError(r, f), 1e-9)

	t.Run("exact forecast", func(t *testing.T) {
		assert.Equal(t, 0.0, WeightedAbsolutePercentageError(r, r))
		assert.Equal(t, 0.0, MeanAbsoluteError(r, r))
	})
	t.Run("non-negative", func(t *testing.T) {
		neg := []float64{-5, 3, -1}
		other := []float64{4, -3, 0}
		assert.GreaterOrEqual(t, MeanAbsoluteError(neg, other), 0.0)
		assert.GreaterOrEqual(t, WeightedAbsolutePercentageError(neg, other), 0.0)
	})
	t.Run("zero realised values are skipped by MAPE", func(t *testing.T) {
		assert.InDelta(t, 50.0, MeanAbsolutePercentageError([]float64{0, 2}, []float64{1, 1}), 1e-9)
		assert.True(t, math.IsNaN(MeanAbsolutePercentageError([]float64{0, 0}, []float64{1, 1})))
		assert.True(t, math.IsNaN(WeightedAbsolutePercentageError([]float64{0, 0}, []float64{1, 1})))
	})
	t.Run("mismatched or empty inputs", func(t *testing.T) {
		assert.True(t, math.IsNaN(MeanAbsoluteError(nil, nil)))
		assert.True(t, math.IsNaN(MeanAbsoluteError([]float64{1}, []float64{1, 2})))
	})
	assert.Equal(t, 0.25, HourFactor(15*time.Minute))
	assert.True(t, math.IsNaN(NanMean(nil)))
	assert.Equal(t, 3.0, NanSum([]float64{1, math.NaN(), 2}))
}

func TestPowerData(t *testing.T) {
	src := &stubSource{
		kind:     models.KindPower,
		res:      time.Hour,
		realised: map[string][]float64{"pv": {10, 20}},
		forecast: map[string][]float64{"pv": {12, 18}},
	}
	in := models.NewMetrics()
	sig, m, err := PowerData(context.Background(), src, []string{"pv"}, hourly(), false, in)
	require.NoError(t, err)

	assert.Len(t, sig.Realised, 2)
	assert.Len(t, sig.Forecast, 2)
	assert.InDelta(t, 30, float64(m.RealisedPowerMWh), 1e-9)
	assert.InDelta(t, 30, float64(m.ExpectedPowerMWh), 1e-9)
	assert.InDelta(t, 2, float64(m.MAEPowerMWh), 1e-9)
	assert.InDelta(t, 13.333333, float64(m.WAPEPower), 1e-6)
	assert.True(t, in.WAPEPower.IsNaN(), "input metrics must not change")

	require.Len(t, src.calls, 2)
	assert.True(t, src.calls[0].Rolling)
	assert.Nil(t, src.calls[0].Horizons.Short)
	assert.Equal(t, time.Duration(0), *src.calls[0].Horizons.Long)
	assert.Equal(t, 6*time.Hour, *src.calls[1].Horizons.Short)
	assert.Nil(t, src.calls[1].Horizons.Long)
	assert.Equal(t, time.Hour, src.calls[1].Resolution)
}

func TestPowerDataQuarterHours(t *testing.T) {
	src := &stubSource{
		kind:     models.KindPower,
		res:      15 * time.Minute,
		realised: map[string][]float64{"a": {4, 4}, "b": {-8, 0}},
		forecast: map[string][]float64{"a": {4, 4}, "b": {-8, 0}},
	}
	p := hourly()
	p.Resolution = 15 * time.Minute
	sig, m, err := PowerData(context.Background(), src, []string{"a", "b"}, p, true, models.NewMetrics())
	require.NoError(t, err)
	assert.Equal(t, []float64{4, -4}, sig.Realised.Ys())
	assert.InDelta(t, 0, float64(m.RealisedPowerMWh), 1e-9)
	assert.Equal(t, 0.0, float64(m.MAEPowerMWh))
}

func TestPowerDataWithoutData(t *testing.T) {
	src := &stubSource{kind: models.KindPower, res: time.Hour}
	sig, m, err := PowerData(context.Background(), src, []string{"pv"}, hourly(), false, models.NewMetrics())
	require.NoError(t, err)
	assert.NotNil(t, sig.Realised)
	assert.Empty(t, sig.Realised)
	assert.Empty(t, sig.Forecast)
	for _, v := range []models.Float{m.RealisedPowerMWh, m.ExpectedPowerMWh, m.MAEPowerMWh, m.MAPEPower, m.WAPEPower} {
		assert.True(t, v.IsNaN())
	}
}

func TestPowerDataMismatchedForecast(t *testing.T) {
	src := &stubSource{
		kind:     models.KindPower,
		res:      time.Hour,
		realised: map[string][]float64{"pv": {10, 20}},
		forecast: map[string][]float64{"pv": {12}},
	}
	_, m, err := PowerData(context.Background(), src, []string{"pv"}, hourly(), false, models.NewMetrics())
	require.NoError(t, err)
	assert.InDelta(t, 30, float64(m.RealisedPowerMWh), 1e-9)
	assert.True(t, m.ExpectedPowerMWh.IsNaN())
	assert.True(t, m.MAEPowerMWh.IsNaN())
	assert.True(t, m.WAPEPower.IsNaN())
}

func TestPricesData(t *testing.T) {
	src := &stubSource{
		kind:     models.KindPrice,
		res:      time.Hour,
		realised: map[string][]float64{"epex_da": {40, 60}},
		forecast: map[string][]float64{"epex_da": {50, 50}},
	}
	_, m, err := PricesData(context.Background(), src, "epex_da", hourly(), models.NewMetrics())
	require.NoError(t, err)
	assert.Equal(t, models.Float(50), m.RealisedUnitPrice)
	assert.Equal(t, models.Float(50), m.ExpectedUnitPrice)
	assert.Equal(t, models.Float(10), m.MAEUnitPrice)
	assert.InDelta(t, 20, float64(m.WAPEUnitPrice), 1e-9)
}

func TestWeatherData(t *testing.T) {
	cat := sensorCatalog{sensors: []models.WeatherSensor{
		{ID: 1, Name: "far", SensorType: "temperature", Latitude: 50, Longitude: 10},
		{ID: 2, Name: "near", SensorType: "temperature", Latitude: 33.4, Longitude: 126.2},
		{ID: 3, Name: "wind", SensorType: "wind_speed", Latitude: 33.4, Longitude: 126.2},
	}}
	src := &stubSource{
		kind:     models.KindWeather,
		res:      time.Hour,
		realised: map[string][]float64{"near": {20, 22}, "far": {0, 0}},
		forecast: map[string][]float64{"near": {21, 21}},
	}
	assets := []models.Asset{{Name: "pv", Latitude: 33.45, Longitude: 126.25}}

	sig, m, err := WeatherData(context.Background(), src, cat, assets, "temperature", hourly(), models.NewMetrics())
	require.NoError(t, err)
	require.NotNil(t, sig.Sensor)
	assert.Equal(t, "near", sig.Sensor.Name)
	assert.Equal(t, models.Float(21), m.RealisedWeather)
	assert.Equal(t, models.Float(1), m.MAEWeather)

	sig, m, err = WeatherData(context.Background(), src, cat, assets, "radiation", hourly(), models.NewMetrics())
	require.NoError(t, err)
	assert.Nil(t, sig.Sensor)
	assert.Empty(t, sig.Realised)
	assert.NotNil(t, sig.Forecast)
	assert.True(t, m.RealisedWeather.IsNaN())
	assert.True(t, m.WAPEWeather.IsNaN())
}

func TestRevenuesCostsData(t *testing.T) {
	p := hourly()
	rows := func(vs ...float64) models.RealisedFrame {
		out := models.RealisedFrame{}
		for i, v := range vs {
			out = append(out, models.RealisedRow{Datetime: t0.Add(time.Duration(i) * time.Hour), Y: models.Float(v), Horizon: models.Duration(-time.Duration(i) * time.Hour)})
		}
		return out
	}
	forecasts := func(vs ...float64) models.ForecastFrame {
		out := models.ForecastFrame{}
		for i, v := range vs {
			out = append(out, models.ForecastRow{Datetime: t0.Add(time.Duration(i) * time.Hour), YHat: models.Float(v)})
		}
		return out
	}

	t.Run("empty inputs", func(t *testing.T) {
		empty := Signal{Realised: models.RealisedFrame{}, Forecast: models.ForecastFrame{}}
		power := Signal{Realised: rows(10, 20), Forecast: forecasts(12, 18)}
		for _, pair := range [][2]Signal{{empty, power}, {power, empty}, {empty, empty}} {
			out, m := RevenuesCostsData(pair[0], pair[1], p, 1, models.NewMetrics())
			assert.True(t, m.RealisedRevenuesCosts.IsNaN())
			assert.True(t, m.ExpectedRevenuesCosts.IsNaN())
			assert.True(t, m.WAPERevenuesCosts.IsNaN())
			assert.Len(t, out.Forecast, len(pair[0].Realised))
		}
	})

	t.Run("derived from power and prices", func(t *testing.T) {
		power := Signal{Realised: rows(10, 20), Forecast: forecasts(12, 18)}
		prices := Signal{Realised: rows(50, 60), Forecast: forecasts(50, 60)}
		m := models.NewMetrics()
		m.WAPEPower = models.Float(4.0 / 30 * 100)
		m.WAPEUnitPrice = 0

		out, got := RevenuesCostsData(power, prices, p, 0.5, m)
		assert.Equal(t, []float64{250, 600}, out.Realised.Ys())
		assert.Equal(t, revenueLabel, out.Realised[0].Label)
		assert.Equal(t, models.Duration(-time.Hour), out.Realised[1].Horizon)
		assert.InDelta(t, 850, float64(got.RealisedRevenuesCosts), 1e-9)

		assert.Equal(t, []float64{300, 540}, out.Forecast.YHats())
		spread := (4.0 / 30) / 2
		assert.InDelta(t, 300*(1+spread), float64(out.Forecast[0].YHatUpper), 1e-9)
		assert.InDelta(t, 540*(1-spread), float64(out.Forecast[1].YHatLower), 1e-9)
		assert.InDelta(t, 840, float64(got.ExpectedRevenuesCosts), 1e-9)
		assert.InDelta(t, 55, float64(got.MAERevenuesCosts), 1e-9)
		assert.InDelta(t, 110.0/850*100, float64(got.WAPERevenuesCosts), 1e-9)
	})
}

func TestDashboardMetricsJSON(t *testing.T) {
	src := Sources{
		Power:   &stubSource{kind: models.KindPower, res: time.Hour, realised: map[string][]float64{"pv": {10, 20}}, forecast: map[string][]float64{"pv": {12, 18}}},
		Prices:  &stubSource{kind: models.KindPrice, res: time.Hour},
		Weather: &stubSource{kind: models.KindWeather, res: time.Hour},
		Catalog: sensorCatalog{},
	}
	r, err := Dashboard(context.Background(), src, DashboardRequest{
		Params:     hourly(),
		Assets:     []models.Asset{{Name: "pv"}},
		Market:     "epex_da",
		SensorType: "temperature",
		UnitFactor: 1,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2, float64(r.Metrics.MAEPowerMWh), 1e-9)
	assert.True(t, r.Metrics.RealisedRevenuesCosts.IsNaN())

	b, err := json.Marshal(r.Metrics)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Nil(t, decoded["realised_unit_price"])
	assert.Equal(t, 2.0, decoded["mae_power_in_mwh"])
	assert.Len(t, decoded, 20)
}
