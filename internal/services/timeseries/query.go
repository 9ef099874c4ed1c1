package timeseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

// QueryOptions are the belief filters shared by Query and Collect.
type QueryOptions struct {
	Window     repository.Window
	Horizons   repository.HorizonWindow
	Rolling    bool
	BeliefTime *time.Time
}

// MakeQuery builds the belief query for one named asset of the given kind.
// An unknown asset yields an empty query rather than an error.
func MakeQuery(ctx context.Context, catalog repository.Catalog, kind models.ValueKind, name string, opts QueryOptions) (repository.BeliefQuery, error) {
	g, err := catalog.Generic(ctx, kind, name)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.EmptyQuery(kind), nil
	}
	if err != nil {
		return repository.BeliefQuery{}, fmt.Errorf("look up %s %q: %w", kind, name, err)
	}
	return repository.BeliefQuery{
		Kind:       kind,
		AssetID:    g.ID,
		Resolution: g.EventResolution,
		Window:     opts.Window,
		Horizons:   opts.Horizons,
		Rolling:    opts.Rolling,
		BeliefTime: opts.BeliefTime,
	}, nil
}
