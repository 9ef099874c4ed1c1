package timeseries

import (
	"context"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

// TimeSeriesSource gives access to the timed values of one quantity type.
type TimeSeriesSource interface {
	Kind() models.ValueKind
	// Query returns the raw beliefs of one asset.
	Query(ctx context.Context, name string, opts QueryOptions) ([]models.TimedValue, error)
	// Collect returns the beliefs of all named assets summed into one series.
	Collect(ctx context.Context, names []string, opts CollectOptions) (models.BeliefSeries, error)
	// CollectEach returns one series per asset name.
	CollectEach(ctx context.Context, names []string, opts CollectOptions) (map[string]models.BeliefSeries, error)
}

// CollectOptions configure Collect and CollectEach.
type CollectOptions struct {
	QueryOptions
	// Preferred sources are tried first, Fallback only when Preferred yields no rows.
	Preferred   SourceFilter
	Fallback    SourceFilter
	SourceTypes []string
	// Resolution is the target event resolution; zero keeps the native one.
	Resolution time.Duration
	// CreateIfEmpty makes CollectEach return an empty series for unknown assets.
	CreateIfEmpty bool
}

// ValueTable is the TimeSeriesSource over one value table.
type ValueTable struct {
	kind    models.ValueKind
	catalog repository.Catalog
	store   repository.BeliefStore
	sources repository.DataSources
}

var _ TimeSeriesSource = (*ValueTable)(nil)

func NewValueTable(kind models.ValueKind, catalog repository.Catalog, store repository.BeliefStore, sources repository.DataSources) *ValueTable {
	return &ValueTable{kind: kind, catalog: catalog, store: store, sources: sources}
}

func NewPowerTable(catalog repository.Catalog, store repository.BeliefStore, sources repository.DataSources) *ValueTable {
	return NewValueTable(models.KindPower, catalog, store, sources)
}

func NewPriceTable(catalog repository.Catalog, store repository.BeliefStore, sources repository.DataSources) *ValueTable {
	return NewValueTable(models.KindPrice, catalog, store, sources)
}

func NewWeatherTable(catalog repository.Catalog, store repository.BeliefStore, sources repository.DataSources) *ValueTable {
	return NewValueTable(models.KindWeather, catalog, store, sources)
}

func (t *ValueTable) Kind() models.ValueKind { return t.kind }

func (t *ValueTable) Query(ctx context.Context, name string, opts QueryOptions) ([]models.TimedValue, error) {
	q, err := MakeQuery(ctx, t.catalog, t.kind, name, opts)
	if err != nil {
		return nil, err
	}
	if q.IsEmpty() {
		return []models.TimedValue{}, nil
	}
	rows, err := t.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s %q: %w", t.kind, name, err)
	}
	return rows, nil
}

func (t *ValueTable) Collect(ctx context.Context, names []string, opts CollectOptions) (models.BeliefSeries, error) {
	all := make([]models.BeliefSeries, 0, len(names))
	for _, name := range names {
		s, _, err := t.collectOne(ctx, name, opts)
		if err != nil {
			return models.BeliefSeries{}, err
		}
		all = append(all, s)
	}
	sum, err := sumSeries(all, opts.Resolution)
	if err != nil {
		return models.BeliefSeries{}, err
	}
	return sum, nil
}

func (t *ValueTable) CollectEach(ctx context.Context, names []string, opts CollectOptions) (map[string]models.BeliefSeries, error) {
	out := make(map[string]models.BeliefSeries, len(names))
	for _, name := range names {
		s, found, err := t.collectOne(ctx, name, opts)
		if err != nil {
			return nil, err
		}
		if !found && !opts.CreateIfEmpty {
			continue
		}
		out[name] = s
	}
	return out, nil
}

// collectOne applies the source preference, keeps the most recent belief per
// event and resamples. found is false for unknown assets.
func (t *ValueTable) collectOne(ctx context.Context, name string, opts CollectOptions) (models.BeliefSeries, bool, error) {
	empty := models.BeliefSeries{Resolution: opts.Resolution, Beliefs: []models.Belief{}}

	q, err := MakeQuery(ctx, t.catalog, t.kind, name, opts.QueryOptions)
	if err != nil {
		return empty, false, err
	}
	if q.IsEmpty() {
		return empty, false, nil
	}

	rows, err := t.querySources(ctx, q, opts.Preferred, opts.SourceTypes)
	if err != nil {
		return empty, true, err
	}
	if len(rows) == 0 && opts.Preferred.Restricted() {
		rows, err = t.querySources(ctx, q, opts.Fallback, opts.SourceTypes)
		if err != nil {
			return empty, true, err
		}
	}

	s := mostRecent(rows, q.Resolution)
	s, err = Resample(s, opts.Resolution)
	if err != nil {
		return empty, true, fmt.Errorf("resample %s %q: %w", t.kind, name, err)
	}
	return s, true, nil
}

func (t *ValueTable) querySources(ctx context.Context, q repository.BeliefQuery, f SourceFilter, sourceTypes []string) ([]models.TimedValue, error) {
	ids, err := f.resolve(ctx, t.sources, sourceTypes)
	if err != nil {
		return nil, err
	}
	q = q.WithSources(ids)
	if q.IsEmpty() {
		return nil, nil
	}
	rows, err := t.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s asset %d: %w", t.kind, q.AssetID, err)
	}
	return rows, nil
}
