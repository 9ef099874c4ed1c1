package timeseries

import (
	"context"
	"fmt"

	"bvp/internal/domain/repository"
)

// NoFallback as a user source id disables the fallback lookup.
const NoFallback int64 = -1

type sourceMode int

const (
	anySource sourceMode = iota
	noSource
	userSource
)

// SourceFilter selects data sources by their owning user.
// The zero value accepts any source.
type SourceFilter struct {
	mode    sourceMode
	userIDs []int64
}

func AllSources() SourceFilter { return SourceFilter{mode: anySource} }

func NoSources() SourceFilter { return SourceFilter{mode: noSource} }

// UserSources accepts sources owned by the given users. No ids means any
// source; an id of NoFallback means none.
func UserSources(ids ...int64) SourceFilter {
	if len(ids) == 0 {
		return AllSources()
	}
	for _, id := range ids {
		if id == NoFallback {
			return NoSources()
		}
	}
	return SourceFilter{mode: userSource, userIDs: append([]int64(nil), ids...)}
}

// Restricted reports whether the filter excludes some sources.
func (f SourceFilter) Restricted() bool { return f.mode != anySource }

// resolve returns the admissible data source ids: nil for no restriction,
// a non-nil empty slice for none.
func (f SourceFilter) resolve(ctx context.Context, ds repository.DataSources, sourceTypes []string) ([]int64, error) {
	var users []int64
	switch f.mode {
	case noSource:
		return []int64{}, nil
	case anySource:
		if len(sourceTypes) == 0 {
			return nil, nil
		}
	case userSource:
		users = f.userIDs
	}
	ids, err := ds.IDs(ctx, users, sourceTypes)
	if err != nil {
		return nil, fmt.Errorf("resolve data sources: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
