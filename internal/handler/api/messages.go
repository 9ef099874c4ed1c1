package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
	"bvp/internal/usecase"
)

// ParseAsList decodes a JSON scalar or list into a list. An absent value
// yields nil.
func ParseAsList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// ContainsEmptyItems reports whether any group holds an empty item.
func ContainsEmptyItems(groups [][]string) bool {
	for _, g := range groups {
		for _, item := range g {
			if item == "" {
				return true
			}
		}
	}
	return false
}

// ConvertTo15Min repeats each value to reach a 15-minute resolution. Values
// whose resolution is not a multiple of 15 minutes are returned unchanged.
func ConvertTo15Min(values []float64, from time.Duration) []float64 {
	const quarter = 15 * time.Minute
	if from <= 0 || from%quarter != 0 {
		return values
	}
	n := int(from / quarter)
	out := make([]float64, 0, len(values)*n)
	for _, v := range values {
		for i := 0; i < n; i++ {
			out = append(out, v)
		}
	}
	return out
}

// UniqueEverSeen returns the distinct value groups in first-seen order,
// each with the keys of every group that had those values.
func UniqueEverSeen(values [][]models.Float, keys [][]string) ([][]models.Float, [][]string) {
	var (
		uv [][]models.Float
		uk [][]string
	)
	for i, v := range values {
		j := indexOfValues(uv, v)
		if j < 0 {
			uv = append(uv, v)
			uk = append(uk, append([]string(nil), keys[i]...))
			continue
		}
		uk[j] = append(uk[j], keys[i]...)
	}
	return uv, uk
}

func indexOfValues(groups [][]models.Float, v []models.Float) int {
	for i, g := range groups {
		if sameValues(g, v) {
			return i
		}
	}
	return -1
}

func sameValues(a, b []models.Float) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !(a[i].IsNaN() && b[i].IsNaN()) {
			return false
		}
	}
	return true
}

// GroupsToDict folds key groups and their values into a response body,
// merging groups with identical values and flattening a single group.
func GroupsToDict(keys [][]string, values [][]models.Float, singular, plural string) map[string]interface{} {
	values, keys = UniqueEverSeen(values, keys)

	entry := func(k []string, v []models.Float) map[string]interface{} {
		if len(k) == 1 {
			return map[string]interface{}{singular: k[0], "values": v}
		}
		return map[string]interface{}{plural: k, "values": v}
	}
	if len(values) == 1 {
		return entry(keys[0], values[0])
	}
	groups := make([]map[string]interface{}, 0, len(values))
	for i := range values {
		groups = append(groups, entry(keys[i], values[i]))
	}
	return map[string]interface{}{"groups": groups}
}

// ReplaceNameWithEA rewrites asset names as connection addresses. Items that
// already are addresses pass through.
func ReplaceNameWithEA(ctx context.Context, catalog drepo.Catalog, eas EntityAddresses, items []string) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		if IsAddress(item) {
			out[i] = item
			continue
		}
		a, err := catalog.Asset(ctx, item)
		if errors.Is(err, drepo.ErrNotFound) {
			return nil, usecase.Reject(usecase.StatusUnrecognizedAsset, "No asset is known by the name %s.", item)
		}
		if err != nil {
			return nil, fmt.Errorf("look up asset %q: %w", item, err)
		}
		out[i] = eas.ConnectionAddress(a.OwnerID, a.ID)
	}
	return out, nil
}

func toFloats(values []float64) []models.Float {
	out := make([]models.Float, len(values))
	for i, v := range values {
		out[i] = models.Float(v)
	}
	return out
}
