package analytics

import (
	"context"
	"fmt"
	"math"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
)

// WeatherSignal is weather data together with the sensor it came from.
type WeatherSignal struct {
	Signal
	SensorType string                `json:"sensor_type"`
	Sensor     *models.WeatherSensor `json:"sensor,omitempty"`
}

// ClosestWeatherSensor returns the sensor of the given type nearest to the
// coordinates, or false when there is none.
func ClosestWeatherSensor(ctx context.Context, catalog repository.Catalog, sensorType string, lat, lng float64) (models.WeatherSensor, bool, error) {
	sensors, err := catalog.WeatherSensors(ctx, sensorType)
	if err != nil {
		return models.WeatherSensor{}, false, fmt.Errorf("list %s sensors: %w", sensorType, err)
	}
	best, bestDist := -1, math.Inf(1)
	for i, s := range sensors {
		if d := haversineKm(lat, lng, s.Latitude, s.Longitude); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return models.WeatherSensor{}, false, nil
	}
	return sensors[best], true, nil
}

// WeatherData returns data of the sensor of sensorType closest to the first
// asset, and the weather metrics. Without assets, a sensor type or a nearby
// sensor, both frames are empty and the metrics NaN.
func WeatherData(ctx context.Context, src timeseries.TimeSeriesSource, catalog repository.Catalog, assets []models.Asset, sensorType string, p Params, m models.Metrics) (WeatherSignal, models.Metrics, error) {
	out := WeatherSignal{
		Signal:     Signal{Realised: models.RealisedFrame{}, Forecast: models.ForecastFrame{}},
		SensorType: sensorType,
	}
	m.RealisedWeather, m.ExpectedWeather = models.NaN(), models.NaN()
	m.MAEWeather, m.MAPEWeather, m.WAPEWeather = models.NaN(), models.NaN(), models.NaN()
	if len(assets) == 0 || sensorType == "" {
		return out, m, nil
	}

	sensor, ok, err := ClosestWeatherSensor(ctx, catalog, sensorType, assets[0].Latitude, assets[0].Longitude)
	if err != nil || !ok {
		return out, m, err
	}
	out.Sensor = &sensor

	realised, forecast, err := fetch(ctx, src, []string{sensor.Name}, p)
	if err != nil {
		return out, m, err
	}
	out.Realised = realisedFrame(realised, 1)
	out.Forecast = forecastFrame(forecast, 1)

	s := score(out.Realised.Ys(), out.Forecast.YHats(), NanMean)
	m.RealisedWeather = s.realised
	m.ExpectedWeather = s.expected
	m.MAEWeather = s.mae
	m.MAPEWeather = s.mape
	m.WAPEWeather = s.wape
	return out, m, nil
}
