package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvp/internal/domain/models"
	"bvp/pkg/cache"
	"bvp/pkg/logger"
)

func ingestCatalog() *fakeCatalog {
	return &fakeCatalog{
		assets: []models.Asset{
			{ID: 3, Name: "cs_1", AssetType: "charging_station", OwnerID: 7, EventResolution: 15 * time.Minute},
			{ID: 4, Name: "solar_1", AssetType: "solar", OwnerID: 8, EventResolution: 15 * time.Minute},
		},
		markets: []models.Market{{ID: 1, Name: "epex_da", DisplayName: "EPEX SPOT day-ahead", Unit: "EUR/MWh", EventResolution: time.Hour}},
		sensors: []models.WeatherSensor{
			{ID: 5, Name: "wind_speed_1", SensorType: "wind_speed", Latitude: 33.4843866, Longitude: 126.477859, EventResolution: 15 * time.Minute},
			{ID: 6, Name: "temperature_1", SensorType: "temperature", Latitude: 33.4843866, Longitude: 126.477859, EventResolution: 15 * time.Minute},
		},
	}
}

type ingestFixture struct {
	ingest  *DataIngest
	store   *memStore
	queue   *fakeQueue
	sources *fakeSources
	cache   *cache.MemoryCache
}

func newIngestFixture(t *testing.T) ingestFixture {
	t.Helper()
	f := ingestFixture{store: &memStore{}, queue: &fakeQueue{}, sources: &fakeSources{}, cache: cache.NewMemoryCache()}
	t.Cleanup(func() { _ = f.cache.Close() })
	f.ingest = NewDataIngest(ingestCatalog(), f.sources, f.store, f.queue, f.cache, ForecastHorizons{
		Price:   []time.Duration{24 * time.Hour, 48 * time.Hour},
		Weather: []time.Duration{time.Hour},
		Power:   []time.Duration{time.Hour, 6 * time.Hour},
	}, logger.Nop())
	return f
}

func TestSeriesTimedValuesHorizons(t *testing.T) {
	s := Series{Start: day1, End: day1.Add(time.Hour), Values: []float64{1, 2, 3, 4}, Horizon: 2 * time.Hour}

	fixed := s.TimedValues(models.KindPrice, 1, 2)
	require.Len(t, fixed, 4)
	assert.Equal(t, 15*time.Minute, s.Resolution())
	assert.Equal(t, 2*time.Hour-45*time.Minute, fixed[0].Horizon)
	assert.Equal(t, 2*time.Hour, fixed[3].Horizon)
	assert.Equal(t, day1.Add(45*time.Minute), fixed[3].Datetime)

	s.Rolling = true
	for _, tv := range s.TimedValues(models.KindPrice, 1, 2) {
		assert.Equal(t, 2*time.Hour, tv.Horizon)
	}
}

func TestPostPrices(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, AnalyticsCachePrefix+"dashboard:x", "stale", time.Minute))

	s := Series{Start: day1, End: day1.Add(time.Hour), Values: []float64{52, 53, 54, 55}, Horizon: time.Hour}
	require.NoError(t, f.ingest.PostPrices(ctx, 7, "epex_da", "EUR/MWh", s))

	require.Len(t, f.store.rows, 4)
	assert.Equal(t, int64(1), f.store.rows[0].AssetID)
	assert.Equal(t, models.KindPrice, f.store.rows[0].Kind)

	require.Len(t, f.sources.list, 1)
	assert.Equal(t, int64(7), f.sources.list[0].UserID)
	assert.Equal(t, f.sources.list[0].ID, f.store.rows[0].DataSourceID)

	require.Len(t, f.queue.jobs, 2)
	for i, h := range []time.Duration{24 * time.Hour, 48 * time.Hour} {
		job := f.queue.jobs[i]
		assert.Equal(t, ForecastingJobType, job.msgType)
		assert.Equal(t, models.Duration(h), job.args.Horizon)
		assert.Equal(t, day1.Add(h), job.args.Start)
		assert.Equal(t, "Price", job.args.TimedValueType)
		assert.Equal(t, int64(1), job.args.AssetID)
	}

	ok, err := f.cache.Exists(ctx, AnalyticsCachePrefix+"dashboard:x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostPricesRejections(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	s := Series{Start: day1, End: day1.Add(time.Hour), Values: []float64{52, 53, 54, 55}, Horizon: time.Hour}

	var rej *RejectError
	err := f.ingest.PostPrices(ctx, 7, "epex_da", "KRW/kWh", s)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusInvalidUnit, rej.Status)
	assert.Equal(t, "Provided unit is not valid. For EPEX SPOT day-ahead prices, the unit should be: EUR/MWh.", rej.Message)

	err = f.ingest.PostPrices(ctx, 7, "apx", "EUR/MWh", s)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusUnrecognizedMarket, rej.Status)

	s.End = day1.Add(2 * time.Minute)
	err = f.ingest.PostPrices(ctx, 7, "epex_da", "EUR/MWh", s)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusInvalidResolution, rej.Status)

	assert.Empty(t, f.store.rows)
	assert.Empty(t, f.queue.jobs)
}

func TestPostWeather(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	s := Series{Start: day1, End: day1.Add(30 * time.Minute), Values: []float64{20, 21}, Horizon: time.Hour, Rolling: true}

	posts := []WeatherPost{{Sensor: SensorRef{Type: "wind_speed", Latitude: 33.4843866, Longitude: 126.477859}, Series: s}}
	require.NoError(t, f.ingest.PostWeather(ctx, 8, "m/s", posts))
	require.Len(t, f.store.rows, 2)
	assert.Equal(t, int64(5), f.store.rows[0].AssetID)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "Weather", f.queue.jobs[0].args.TimedValueType)

	var rej *RejectError
	err := f.ingest.PostWeather(ctx, 8, "km/h", posts)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Provided unit is not valid. For wind speed, the unit should be: m/s.", rej.Message)

	posts[0].Sensor.Latitude = 10
	err = f.ingest.PostWeather(ctx, 8, "m/s", posts)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusUnrecognizedSensor, rej.Status)

	posts[0].Sensor.Type = "humidity"
	err = f.ingest.PostWeather(ctx, 8, "%", posts)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusUnrecognizedSensor, rej.Status)
}

func TestPostMeter(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	s := Series{Start: day1, End: day1.Add(30 * time.Minute), Values: []float64{-0.3, -0.4}, Horizon: 0}

	require.NoError(t, f.ingest.PostMeter(ctx, 7, "MW", []MeterPost{{Connection: ConnectionRef{OwnerID: 7, AssetID: 3}, Series: s}}))
	require.Len(t, f.store.rows, 2)
	assert.Equal(t, -0.3, f.store.rows[0].Value)
	assert.Len(t, f.queue.jobs, 2)

	var rej *RejectError
	err := f.ingest.PostMeter(ctx, 7, "MW", []MeterPost{{Connection: ConnectionRef{OwnerID: 8, AssetID: 4}, Series: s}})
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusUnrecognizedAsset, rej.Status)

	err = f.ingest.PostMeter(ctx, 7, "kW", nil)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, StatusInvalidUnit, rej.Status)
}

func TestPostWrapsStoreFailure(t *testing.T) {
	q := &fakeQueue{}
	ingest := NewDataIngest(ingestCatalog(), &fakeSources{}, failingProc{}, q, nil, ForecastHorizons{Price: []time.Duration{time.Hour}}, logger.Nop())
	s := Series{Start: day1, End: day1.Add(time.Hour), Values: []float64{1}, Horizon: time.Hour}

	err := ingest.PostPrices(context.Background(), 7, "epex_da", "EUR/MWh", s)
	require.Error(t, err)
	var rej *RejectError
	assert.False(t, errors.As(err, &rej))
	assert.Empty(t, q.jobs)
}

func TestEnqueueFailureDoesNotFailPost(t *testing.T) {
	f := newIngestFixture(t)
	f.queue.err = errors.New("redis down")
	s := Series{Start: day1, End: day1.Add(time.Hour), Values: []float64{1}, Horizon: time.Hour}

	require.NoError(t, f.ingest.PostPrices(context.Background(), 7, "epex_da", "EUR/MWh", s))
	assert.Len(t, f.store.rows, 1)
}
