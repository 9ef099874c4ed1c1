package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
)

const testHost = "bvp.test"

type memStore struct {
	mu   sync.Mutex
	rows []models.TimedValue
}

func (m *memStore) Init(context.Context) error   { return nil }
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) Query(_ context.Context, q drepo.BeliefQuery) ([]models.TimedValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimedValue
	for _, r := range m.rows {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) StoreBatch(_ context.Context, values []models.TimedValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, values...)
	return nil
}

func (m *memStore) ProcessBatch(ctx context.Context, values []models.TimedValue) error {
	return m.StoreBatch(ctx, values)
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type fakeCatalog struct {
	assets  []models.Asset
	markets []models.Market
	sensors []models.WeatherSensor
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{
		assets: []models.Asset{
			{ID: 3, Name: "cs_1", AssetType: "charging_station", OwnerID: 7, EventResolution: 15 * time.Minute},
		},
		markets: []models.Market{{ID: 1, Name: "epex_da", DisplayName: "EPEX SPOT day-ahead", Unit: "EUR/MWh", EventResolution: time.Hour}},
		sensors: []models.WeatherSensor{
			{ID: 5, Name: "wind_speed_1", SensorType: "wind_speed", Latitude: 33.4843866, Longitude: 126.477859, EventResolution: 15 * time.Minute},
		},
	}
}

func (c *fakeCatalog) Generic(_ context.Context, kind models.ValueKind, name string) (models.Generic, error) {
	for _, g := range c.generics(kind) {
		if g.Name == name {
			return g, nil
		}
	}
	return models.Generic{}, drepo.ErrNotFound
}

func (c *fakeCatalog) GenericByID(_ context.Context, kind models.ValueKind, id int64) (models.Generic, error) {
	for _, g := range c.generics(kind) {
		if g.ID == id {
			return g, nil
		}
	}
	return models.Generic{}, drepo.ErrNotFound
}

func (c *fakeCatalog) generics(kind models.ValueKind) []models.Generic {
	var out []models.Generic
	switch kind {
	case models.KindPower:
		for _, a := range c.assets {
			out = append(out, a.Generic())
		}
	case models.KindPrice:
		for _, m := range c.markets {
			out = append(out, m.Generic())
		}
	case models.KindWeather:
		for _, s := range c.sensors {
			out = append(out, s.Generic())
		}
	}
	return out
}

func (c *fakeCatalog) Asset(_ context.Context, name string) (models.Asset, error) {
	for _, a := range c.assets {
		if a.Name == name {
			return a, nil
		}
	}
	return models.Asset{}, drepo.ErrNotFound
}

func (c *fakeCatalog) AssetByID(_ context.Context, id int64) (models.Asset, error) {
	for _, a := range c.assets {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Asset{}, drepo.ErrNotFound
}

func (c *fakeCatalog) Assets(_ context.Context, assetType string) ([]models.Asset, error) {
	var out []models.Asset
	for _, a := range c.assets {
		if assetType == "" || a.AssetType == assetType {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *fakeCatalog) Market(_ context.Context, name string) (models.Market, error) {
	for _, m := range c.markets {
		if m.Name == name {
			return m, nil
		}
	}
	return models.Market{}, drepo.ErrNotFound
}

func (c *fakeCatalog) WeatherSensors(_ context.Context, sensorType string) ([]models.WeatherSensor, error) {
	var out []models.WeatherSensor
	for _, s := range c.sensors {
		if s.SensorType == sensorType {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeSources struct {
	list []models.DataSource
}

func (f *fakeSources) GetOrCreateForUser(_ context.Context, userID int64, label string) (models.DataSource, error) {
	for _, s := range f.list {
		if s.UserID == userID {
			return s, nil
		}
	}
	s := models.DataSource{ID: int64(len(f.list) + 1), Label: label, Type: models.SourceTypeUser, UserID: userID}
	f.list = append(f.list, s)
	return s, nil
}

func (f *fakeSources) GetOrCreate(_ context.Context, label, sourceType string) (models.DataSource, error) {
	for _, s := range f.list {
		if s.Label == label && s.Type == sourceType {
			return s, nil
		}
	}
	s := models.DataSource{ID: int64(len(f.list) + 1), Label: label, Type: sourceType}
	f.list = append(f.list, s)
	return s, nil
}

func (f *fakeSources) IDs(context.Context, []int64, []string) ([]int64, error) {
	out := make([]int64, len(f.list))
	for i, s := range f.list {
		out[i] = s.ID
	}
	return out, nil
}

type fakeTaskRuns struct {
	runs    map[string]models.LatestTaskRun
	saveErr error
}

func (f *fakeTaskRuns) Latest(_ context.Context, name string) (models.LatestTaskRun, error) {
	r, ok := f.runs[name]
	if !ok {
		return models.LatestTaskRun{}, drepo.ErrNotFound
	}
	return r, nil
}

func (f *fakeTaskRuns) Save(_ context.Context, run models.LatestTaskRun) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.runs == nil {
		f.runs = map[string]models.LatestTaskRun{}
	}
	f.runs[run.Name] = run
	return nil
}

var errDBGone = errors.New("db gone")
