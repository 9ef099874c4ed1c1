package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	drepo "bvp/internal/domain/repository"
	"bvp/internal/services/timeseries"
)

// RetrievalQuery asks for the power values of connections in [Start, End).
// A zero Resolution keeps each asset's own.
type RetrievalQuery struct {
	Connections []ConnectionRef
	Start       time.Time
	End         time.Time
	Resolution  time.Duration
	Horizon     *time.Duration
	Rolling     bool
}

// ConnectionValues are the values of one connection, in event order.
type ConnectionValues struct {
	Connection ConnectionRef
	Values     []float64
}

// DataRetrieval serves meter data and prognoses of a user's connections.
type DataRetrieval struct {
	power   timeseries.TimeSeriesSource
	catalog drepo.Catalog
}

func NewDataRetrieval(power timeseries.TimeSeriesSource, catalog drepo.Catalog) *DataRetrieval {
	return &DataRetrieval{power: power, catalog: catalog}
}

// MeterData returns measurements: beliefs formed at or after the event end,
// or up to Horizon ahead of it when one is given.
func (r *DataRetrieval) MeterData(ctx context.Context, userID int64, q RetrievalQuery) ([]ConnectionValues, error) {
	horizons := drepo.RealisedHorizons()
	if q.Horizon == nil {
		q.Rolling = true
	} else {
		horizons = drepo.HorizonWindow{Long: drepo.Dur(*q.Horizon)}
	}
	return r.collect(ctx, userID, q, horizons)
}

// Prognosis returns forecasts made at least Horizon ahead.
func (r *DataRetrieval) Prognosis(ctx context.Context, userID int64, q RetrievalQuery) ([]ConnectionValues, error) {
	if q.Horizon == nil {
		return nil, Reject(StatusInvalidHorizon, "A horizon is required for a prognosis.")
	}
	return r.collect(ctx, userID, q, drepo.ForecastHorizons(*q.Horizon))
}

func (r *DataRetrieval) collect(ctx context.Context, userID int64, q RetrievalQuery, horizons drepo.HorizonWindow) ([]ConnectionValues, error) {
	if !q.End.After(q.Start) {
		return nil, Reject(StatusUnrecognizedRequest, "The end of the period must be after its start.")
	}
	names := make([]string, len(q.Connections))
	for i, ref := range q.Connections {
		a, err := r.catalog.AssetByID(ctx, ref.AssetID)
		if errors.Is(err, drepo.ErrNotFound) || (err == nil && (a.OwnerID != ref.OwnerID || a.OwnerID != userID)) {
			return nil, Reject(StatusUnrecognizedAsset, "Connection %d:%d is not known to you.", ref.OwnerID, ref.AssetID)
		}
		if err != nil {
			return nil, fmt.Errorf("look up asset %d: %w", ref.AssetID, err)
		}
		names[i] = a.Name
	}

	series, err := r.power.CollectEach(ctx, names, timeseries.CollectOptions{
		QueryOptions: timeseries.QueryOptions{
			Window:   drepo.Window{Start: q.Start, End: q.End},
			Horizons: horizons,
			Rolling:  q.Rolling,
		},
		Resolution:    q.Resolution,
		CreateIfEmpty: true,
	})
	if errors.Is(err, timeseries.ErrIncompatibleResolution) {
		return nil, InvalidResolution()
	}
	if err != nil {
		return nil, fmt.Errorf("collect power: %w", err)
	}

	out := make([]ConnectionValues, len(q.Connections))
	for i, ref := range q.Connections {
		out[i] = ConnectionValues{Connection: ref, Values: series[names[i]].Values()}
	}
	return out, nil
}
