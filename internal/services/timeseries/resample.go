package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"bvp/internal/domain/models"
)

// ErrIncompatibleResolution is returned when one resolution is not a whole multiple of the other.
var ErrIncompatibleResolution = errors.New("incompatible resolution")

// Resample converts s to the target resolution. Upsampling repeats each value
// native/target times; downsampling averages the values in each bucket.
func Resample(s models.BeliefSeries, target time.Duration) (models.BeliefSeries, error) {
	if target <= 0 || s.Resolution == target {
		return s, nil
	}
	if s.Resolution <= 0 {
		s.Resolution = target
		return s, nil
	}
	if s.Resolution > target {
		if s.Resolution%target != 0 {
			return s, fmt.Errorf("%w: %s to %s", ErrIncompatibleResolution, s.Resolution, target)
		}
		return upsample(s, target), nil
	}
	if target%s.Resolution != 0 {
		return s, fmt.Errorf("%w: %s to %s", ErrIncompatibleResolution, s.Resolution, target)
	}
	return downsample(s, target), nil
}

func upsample(s models.BeliefSeries, target time.Duration) models.BeliefSeries {
	n := int(s.Resolution / target)
	out := models.BeliefSeries{Resolution: target, Beliefs: make([]models.Belief, 0, len(s.Beliefs)*n)}
	for _, b := range s.Beliefs {
		for i := 0; i < n; i++ {
			nb := b
			nb.EventStart = b.EventStart.Add(time.Duration(i) * target)
			out.Beliefs = append(out.Beliefs, nb)
		}
	}
	return out
}

func downsample(s models.BeliefSeries, target time.Duration) models.BeliefSeries {
	type bucket struct {
		first models.Belief
		sum   float64
		n     int
	}
	buckets := make(map[time.Time]*bucket)
	var keys []time.Time
	for _, b := range s.Beliefs {
		k := b.EventStart.Truncate(target)
		bk, ok := buckets[k]
		if !ok {
			bk = &bucket{first: b}
			buckets[k] = bk
			keys = append(keys, k)
		}
		if b.Horizon < bk.first.Horizon {
			bk.first.Horizon = b.Horizon
		}
		if !math.IsNaN(b.Value) {
			bk.sum += b.Value
			bk.n++
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := models.BeliefSeries{Resolution: target, Beliefs: make([]models.Belief, 0, len(keys))}
	for _, k := range keys {
		bk := buckets[k]
		v := math.NaN()
		if bk.n > 0 {
			v = bk.sum / float64(bk.n)
		}
		out.Beliefs = append(out.Beliefs, models.Belief{EventStart: k, Horizon: bk.first.Horizon, SourceID: bk.first.SourceID, Value: v})
	}
	return out
}

// mostRecent keeps one belief per event: the one with the smallest horizon,
// ties broken by the lowest source id. The result is ordered by event start.
func mostRecent(rows []models.TimedValue, resolution time.Duration) models.BeliefSeries {
	best := make(map[time.Time]models.Belief, len(rows))
	for _, r := range rows {
		t := r.Datetime.UTC()
		cur, ok := best[t]
		if ok && (cur.Horizon < r.Horizon || (cur.Horizon == r.Horizon && cur.SourceID <= r.DataSourceID)) {
			continue
		}
		best[t] = models.Belief{EventStart: t, Horizon: r.Horizon, SourceID: r.DataSourceID, Value: r.Value}
	}
	s := models.BeliefSeries{Resolution: resolution, Beliefs: make([]models.Belief, 0, len(best))}
	for _, b := range best {
		s.Beliefs = append(s.Beliefs, b)
	}
	sort.Slice(s.Beliefs, func(i, j int) bool { return s.Beliefs[i].EventStart.Before(s.Beliefs[j].EventStart) })
	return s
}

// sumSeries adds series per event start. NaN values are skipped; the summed
// belief keeps the smallest horizon. Sources are mixed, so SourceID is 0 unless all agree.
func sumSeries(all []models.BeliefSeries, resolution time.Duration) (models.BeliefSeries, error) {
	type acc struct {
		b     models.Belief
		seen  bool
		mixed bool
	}
	sums := make(map[time.Time]*acc)
	var keys []time.Time
	for _, s := range all {
		if s.Empty() {
			continue
		}
		if resolution == 0 {
			resolution = s.Resolution
		} else if s.Resolution != resolution {
			return models.BeliefSeries{}, fmt.Errorf("%w: cannot sum %s with %s", ErrIncompatibleResolution, s.Resolution, resolution)
		}
		for _, b := range s.Beliefs {
			a, ok := sums[b.EventStart]
			if !ok {
				a = &acc{b: models.Belief{EventStart: b.EventStart, Horizon: b.Horizon, SourceID: b.SourceID, Value: math.NaN()}}
				sums[b.EventStart] = a
				keys = append(keys, b.EventStart)
			}
			if b.Horizon < a.b.Horizon {
				a.b.Horizon = b.Horizon
			}
			if a.b.SourceID != b.SourceID {
				a.mixed = true
			}
			if math.IsNaN(b.Value) {
				continue
			}
			if !a.seen {
				a.b.Value = 0
				a.seen = true
			}
			a.b.Value += b.Value
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	out := models.BeliefSeries{Resolution: resolution, Beliefs: make([]models.Belief, 0, len(keys))}
	for _, k := range keys {
		a := sums[k]
		if a.mixed {
			a.b.SourceID = 0
		}
		out.Beliefs = append(out.Beliefs, a.b)
	}
	return out, nil
}
