package timeseries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

var t0 = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

func window(hours int) repository.Window {
	return repository.Window{Start: t0, End: t0.Add(time.Duration(hours) * time.Hour)}
}

func power(assetID int64, minutes int, horizon time.Duration, value float64, source int64) models.TimedValue {
	return models.TimedValue{Kind: models.KindPower, AssetID: assetID, Datetime: at(minutes), Horizon: horizon, Value: value, DataSourceID: source}
}

func newPowerFixture() (*ValueTable, *memStore, *fakeSources) {
	cat := newFakeCatalog()
	cat.add(models.KindPower, 1, "wind-1", 15*time.Minute)
	cat.add(models.KindPower, 2, "wind-2", 15*time.Minute)
	cat.add(models.KindPower, 3, "battery-hourly", time.Hour)
	store := &memStore{}
	sources := &fakeSources{list: []models.DataSource{
		{ID: 1, Label: "user 3", Type: models.SourceTypeUser, UserID: 3},
		{ID: 2, Label: "user 7", Type: models.SourceTypeUser, UserID: 7},
		{ID: 3, Label: "model", Type: models.SourceTypeForecaster},
	}}
	return NewPowerTable(cat, store, sources), store, sources
}

func TestResample(t *testing.T) {
	hourly := models.BeliefSeries{Resolution: time.Hour, Beliefs: []models.Belief{{EventStart: t0, Value: 5, SourceID: 1}}}

	t.Run("coarse to fine repeats values", func(t *testing.T) {
		got, err := Resample(hourly, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, got.Resolution)
		assert.Equal(t, []float64{5, 5, 5, 5}, got.Values())
		for i, b := range got.Beliefs {
			assert.Equal(t, at(15*i), b.EventStart)
		}
	})

	t.Run("same resolution is a no-op", func(t *testing.T) {
		s := models.BeliefSeries{Resolution: 15 * time.Minute, Beliefs: []models.Belief{{EventStart: t0, Value: 1}, {EventStart: at(15), Value: 2}}}
		got, err := Resample(s, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	})

	t.Run("fine to coarse averages buckets", func(t *testing.T) {
		s := models.BeliefSeries{Resolution: 15 * time.Minute, Beliefs: []models.Belief{
			{EventStart: at(0), Value: 1}, {EventStart: at(15), Value: 2}, {EventStart: at(30), Value: 3}, {EventStart: at(45), Value: 6},
			{EventStart: at(60), Value: 10},
		}}
		got, err := Resample(s, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 10}, got.Values())
	})

	t.Run("non-multiple resolutions are rejected", func(t *testing.T) {
		_, err := Resample(hourly, 25*time.Minute)
		assert.True(t, errors.Is(err, ErrIncompatibleResolution))
	})
}

func TestQueryHorizonWindows(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{
		power(1, 0, -15*time.Minute, 10, 1),
		power(1, 0, 0, 11, 1),
		power(1, 0, 6*time.Hour, 12, 3),
		power(1, 15, 24*time.Hour, 13, 3),
		power(1, 15, 0, 14, 1),
	}
	ctx := context.Background()

	realised, err := table.Query(ctx, "wind-1", QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true})
	require.NoError(t, err)
	require.Len(t, realised, 3)
	for _, r := range realised {
		assert.LessOrEqual(t, r.Horizon, time.Duration(0))
	}

	forecasts, err := table.Query(ctx, "wind-1", QueryOptions{Window: window(1), Horizons: repository.ForecastHorizons(6 * time.Hour), Rolling: true})
	require.NoError(t, err)
	require.Len(t, forecasts, 2)
	for _, r := range forecasts {
		assert.GreaterOrEqual(t, r.Horizon, 6*time.Hour)
	}
}

func TestQueryUnknownAssetIsEmpty(t *testing.T) {
	table, store, _ := newPowerFixture()
	rows, err := table.Query(context.Background(), "no-such-asset", QueryOptions{Window: window(1), Rolling: true})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, store.queries)
}

func TestCollectKeepsMostRecentBelief(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{
		power(1, 0, 0, 11, 1),
		power(1, 0, -15*time.Minute, 10, 2),
		power(1, 15, 0, 20, 2),
		power(1, 15, 0, 21, 1),
	}
	s, err := table.Collect(context.Background(), []string{"wind-1"}, CollectOptions{
		QueryOptions: QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 21}, s.Values())
}

func TestCollectSourceFallback(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{power(1, 0, 0, 42, 2), power(1, 15, 0, 43, 2)}
	base := QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true}
	ctx := context.Background()

	s, err := table.Collect(ctx, []string{"wind-1"}, CollectOptions{QueryOptions: base, Preferred: UserSources(3), Fallback: UserSources(7)})
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 43}, s.Values())

	s, err = table.Collect(ctx, []string{"wind-1"}, CollectOptions{QueryOptions: base, Preferred: UserSources(3), Fallback: UserSources(NoFallback)})
	require.NoError(t, err)
	assert.True(t, s.Empty())

	s, err = table.Collect(ctx, []string{"wind-1"}, CollectOptions{QueryOptions: base})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestCollectSourcePreferenceIsPerAsset(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{
		power(1, 0, 0, 1, 1), power(1, 0, 0, 100, 2),
		power(2, 0, 0, 5, 2),
	}
	s, err := table.Collect(context.Background(), []string{"wind-1", "wind-2"}, CollectOptions{
		QueryOptions: QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true},
		Preferred:    UserSources(3),
		Fallback:     UserSources(7),
	})
	require.NoError(t, err)
	// wind-1 uses its preferred source (1), wind-2 falls back to source 2.
	assert.Equal(t, []float64{6}, s.Values())
}

func TestCollectEach(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{
		{Kind: models.KindPower, AssetID: 3, Datetime: t0, Value: 8, DataSourceID: 1},
		power(1, 0, 0, 2, 1),
	}
	opts := CollectOptions{
		QueryOptions: QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true},
		Resolution:   15 * time.Minute,
	}
	ctx := context.Background()

	got, err := table.CollectEach(ctx, []string{"battery-hourly", "wind-1", "ghost"}, opts)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{8, 8, 8, 8}, got["battery-hourly"].Values())
	assert.Equal(t, []float64{2}, got["wind-1"].Values())

	opts.CreateIfEmpty = true
	got, err = table.CollectEach(ctx, []string{"ghost"}, opts)
	require.NoError(t, err)
	require.Contains(t, got, "ghost")
	assert.True(t, got["ghost"].Empty())
	assert.Equal(t, 15*time.Minute, got["ghost"].Resolution)
}

func TestCollectSumsAssets(t *testing.T) {
	table, store, _ := newPowerFixture()
	store.rows = []models.TimedValue{
		power(1, 0, 0, 1, 1), power(1, 15, 0, 2, 1),
		power(2, 0, -time.Hour, 10, 1), power(2, 30, 0, 30, 1),
	}
	s, err := table.Collect(context.Background(), []string{"wind-1", "wind-2"}, CollectOptions{
		QueryOptions: QueryOptions{Window: window(1), Horizons: repository.RealisedHorizons(), Rolling: true},
		Resolution:   15 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 2, 30}, s.Values())
	assert.Equal(t, -time.Hour, s.Beliefs[0].Horizon)
}

func TestCollectNoDataIsEmptyNotError(t *testing.T) {
	table, _, _ := newPowerFixture()
	s, err := table.Collect(context.Background(), []string{"wind-1", "ghost"}, CollectOptions{
		QueryOptions: QueryOptions{Window: window(24), Horizons: repository.RealisedHorizons(), Rolling: true},
		Resolution:   15 * time.Minute,
	})
	require.NoError(t, err)
	assert.True(t, s.Empty())
	assert.NotNil(t, s.Beliefs)
}
