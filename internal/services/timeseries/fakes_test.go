package timeseries

import (
	"context"
	"time"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

type memStore struct {
	rows    []models.TimedValue
	queries int
}

func (m *memStore) Init(context.Context) error   { return nil }
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) Query(_ context.Context, q repository.BeliefQuery) ([]models.TimedValue, error) {
	m.queries++
	var out []models.TimedValue
	for _, r := range m.rows {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) StoreBatch(_ context.Context, values []models.TimedValue) error {
	m.rows = append(m.rows, values...)
	return nil
}

type fakeCatalog struct {
	generics map[models.ValueKind]map[string]models.Generic
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{generics: map[models.ValueKind]map[string]models.Generic{}}
}

func (c *fakeCatalog) add(kind models.ValueKind, id int64, name string, res time.Duration) {
	if c.generics[kind] == nil {
		c.generics[kind] = map[string]models.Generic{}
	}
	c.generics[kind][name] = models.Generic{Kind: kind, ID: id, Name: name, EventResolution: res}
}

func (c *fakeCatalog) Generic(_ context.Context, kind models.ValueKind, name string) (models.Generic, error) {
	g, ok := c.generics[kind][name]
	if !ok {
		return models.Generic{}, repository.ErrNotFound
	}
	return g, nil
}

func (c *fakeCatalog) GenericByID(_ context.Context, kind models.ValueKind, id int64) (models.Generic, error) {
	for _, g := range c.generics[kind] {
		if g.ID == id {
			return g, nil
		}
	}
	return models.Generic{}, repository.ErrNotFound
}

func (c *fakeCatalog) Asset(context.Context, string) (models.Asset, error) {
	return models.Asset{}, repository.ErrNotFound
}

func (c *fakeCatalog) AssetByID(context.Context, int64) (models.Asset, error) {
	return models.Asset{}, repository.ErrNotFound
}

func (c *fakeCatalog) Assets(context.Context, string) ([]models.Asset, error) {
	return nil, nil
}

func (c *fakeCatalog) Market(context.Context, string) (models.Market, error) {
	return models.Market{}, repository.ErrNotFound
}

func (c *fakeCatalog) WeatherSensors(context.Context, string) ([]models.WeatherSensor, error) {
	return nil, nil
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
		if userIDs != nil && !contains(userIDs, s.UserID) {
			continue
		}
		if len(sourceTypes) > 0 && !containsString(sourceTypes, s.Type) {
			continue
		}
		out = append(out, s.ID)
	}
	return out, nil
}

func contains(ids []int64, id int64) bool {
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
