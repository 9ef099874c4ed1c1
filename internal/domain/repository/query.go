package repository

import (
	"fmt"
	"strings"
	"time"

	"bvp/internal/domain/models"
)

// Window is the half-open event window [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// HorizonWindow bounds belief horizons; a nil bound is unbounded on that side.
type HorizonWindow struct {
	Short *time.Duration
	Long  *time.Duration
}

// Dur returns a pointer to d, for building horizon windows.
func Dur(d time.Duration) *time.Duration { return &d }

// RealisedHorizons selects measurements and after-the-fact estimates: (nil, 0).
func RealisedHorizons() HorizonWindow { return HorizonWindow{Long: Dur(0)} }

// ForecastHorizons selects beliefs formed at least h ahead: (h, nil).
func ForecastHorizons(h time.Duration) HorizonWindow { return HorizonWindow{Short: Dur(h)} }

// BeliefQuery selects the timed values of one asset. It is a plain value:
// stores render it (Where) and in-memory code evaluates it (Matches).
type BeliefQuery struct {
	Kind       models.ValueKind
	AssetID    int64
	Resolution time.Duration
	Window     Window
	Horizons   HorizonWindow
	Rolling    bool
	BeliefTime *time.Time
	SourceIDs  []int64

	empty bool
}

// EmptyQuery matches nothing. It is what an unknown asset resolves to.
func EmptyQuery(kind models.ValueKind) BeliefQuery {
	return BeliefQuery{Kind: kind, empty: true}
}

func (q BeliefQuery) IsEmpty() bool { return q.empty }

// WithSources restricts the query to the given data sources. A nil slice lifts
// the restriction; a non-nil empty slice admits no source at all.
func (q BeliefQuery) WithSources(ids []int64) BeliefQuery {
	if ids != nil && len(ids) == 0 {
		q.empty = true
	}
	q.SourceIDs = ids
	return q
}

// anchor is the fixed instant non-rolling horizons are measured from.
func (q BeliefQuery) anchor() time.Time {
	if q.BeliefTime != nil {
		return *q.BeliefTime
	}
	return q.Window.End
}

// Matches reports whether tv would be selected by the query.
func (q BeliefQuery) Matches(tv models.TimedValue) bool {
	if q.empty || tv.AssetID != q.AssetID || (q.Kind != "" && tv.Kind != "" && tv.Kind != q.Kind) {
		return false
	}
	if !q.Window.Contains(tv.Datetime) {
		return false
	}
	if len(q.SourceIDs) > 0 && !containsID(q.SourceIDs, tv.DataSourceID) {
		return false
	}
	known := tv.KnowledgeTime(q.Resolution)
	if q.Rolling {
		if q.Horizons.Short != nil && tv.Horizon < *q.Horizons.Short {
			return false
		}
		if q.Horizons.Long != nil && tv.Horizon > *q.Horizons.Long {
			return false
		}
	} else {
		a := q.anchor()
		if q.Horizons.Short != nil && known.After(a.Add(-*q.Horizons.Short)) {
			return false
		}
		if q.Horizons.Long != nil && known.Before(a.Add(-*q.Horizons.Long)) {
			return false
		}
	}
	if q.BeliefTime != nil && known.After(*q.BeliefTime) {
		return false
	}
	return true
}

// Where renders the query as a SQL predicate over the columns
// asset_id, datetime, horizon_s (seconds) and data_source_id.
func (q BeliefQuery) Where() (string, []any) {
	if q.empty {
		return "0 = 1", nil
	}
	conds := []string{"asset_id = ?", "datetime >= ?", "datetime < ?"}
	args := []any{q.AssetID, q.Window.Start.UTC(), q.Window.End.UTC()}

	if len(q.SourceIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(q.SourceIDs)), ", ")
		conds = append(conds, fmt.Sprintf("data_source_id IN (%s)", marks))
		for _, id := range q.SourceIDs {
			args = append(args, id)
		}
	}

	res := int64(q.Resolution / time.Second)
	known := "toUnixTimestamp(datetime) + ? - horizon_s"
	if q.Rolling {
		if q.Horizons.Short != nil {
			conds = append(conds, "horizon_s >= ?")
			args = append(args, int64(*q.Horizons.Short/time.Second))
		}
		if q.Horizons.Long != nil {
			conds = append(conds, "horizon_s <= ?")
			args = append(args, int64(*q.Horizons.Long/time.Second))
		}
	} else {
		a := q.anchor()
		if q.Horizons.Short != nil {
			conds = append(conds, known+" <= ?")
			args = append(args, res, a.Add(-*q.Horizons.Short).Unix())
		}
		if q.Horizons.Long != nil {
			conds = append(conds, known+" >= ?")
			args = append(args, res, a.Add(-*q.Horizons.Long).Unix())
		}
	}
	if q.BeliefTime != nil {
		conds = append(conds, known+" <= ?")
		args = append(args, res, q.BeliefTime.Unix())
	}
	return strings.Join(conds, " AND "), args
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
