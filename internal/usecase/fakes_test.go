package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
)

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

// ProcessBatch lets the store stand in for a BatchProcessor.
func (m *memStore) ProcessBatch(ctx context.Context, values []models.TimedValue) error {
	return m.StoreBatch(ctx, values)
}

type fakeCatalog struct {
	assets  []models.Asset
	markets []models.Market
	sensors []models.WeatherSensor
}

func (c *fakeCatalog) Generic(_ context.Context, kind models.ValueKind, name string) (models.Generic, error) {
	switch kind {
	case models.KindPower:
		for _, a := range c.assets {
			if a.Name == name {
				return a.Generic(), nil
			}
		}
	case models.KindPrice:
		for _, m := range c.markets {
			if m.Name == name {
				return m.Generic(), nil
			}
		}
	case models.KindWeather:
		for _, s := range c.sensors {
			if s.Name == name {
				return s.Generic(), nil
			}
		}
	}
	return models.Generic{}, drepo.ErrNotFound
}

func (c *fakeCatalog) GenericByID(_ context.Context, kind models.ValueKind, id int64) (models.Generic, error) {
	switch kind {
	case models.KindPower:
		for _, a := range c.assets {
			if a.ID == id {
				return a.Generic(), nil
			}
		}
	case models.KindPrice:
		for _, m := range c.markets {
			if m.ID == id {
				return m.Generic(), nil
			}
		}
	case models.KindWeather:
		for _, s := range c.sensors {
			if s.ID == id {
				return s.Generic(), nil
			}
		}
	}
	return models.Generic{}, drepo.ErrNotFound
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

func (f *fakeSources) IDs(_ context.Context, userIDs []int64, sourceTypes []string) ([]int64, error) {
	var out []int64
	for _, s := range f.list {
		if userIDs != nil && !containsInt64(userIDs, s.UserID) {
			continue
		}
		if len(sourceTypes) > 0 && !containsString(sourceTypes, s.Type) {
			continue
		}
		out = append(out, s.ID)
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

type enqueued struct {
	msgType string
	args    ForecastingArgs
}

type fakeQueue struct {
	jobs []enqueued
	err  error
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, enqueued{msgType: msgType, args: payload.(ForecastingArgs)})
	return nil
}

type sinkCall struct {
	resource string
	at       time.Time
	metrics  models.Metrics
}

type fakeSink struct {
	calls []sinkCall
}

func (s *fakeSink) WriteMetrics(_ context.Context, resource string, at time.Time, m models.Metrics) error {
	s.calls = append(s.calls, sinkCall{resource: resource, at: at, metrics: m})
	return nil
}

type failingProc struct{}

func (failingProc) ProcessBatch(context.Context, []models.TimedValue) error {
	return errors.New("store unavailable")
}

func containsInt64(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type nopMetrics struct{ errors []string }

func (m *nopMetrics) RecordValuesStored(string, models.ValueKind, int)   {}
func (m *nopMetrics) RecordError(kind string)                           { m.errors = append(m.errors, kind) }
func (m *nopMetrics) RecordLastValue(models.ValueKind, string, float64) {}
func (m *nopMetrics) RecordLatency(string, float64)                     {}
