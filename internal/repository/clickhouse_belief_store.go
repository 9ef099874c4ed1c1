package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bvp/internal/domain/models"
	"bvp/internal/domain/repository"
)

var valueKinds = []models.ValueKind{models.KindPower, models.KindPrice, models.KindWeather}

// ClickHouseBeliefStore keeps one ReplacingMergeTree table per value kind,
// keyed by (asset_id, datetime, horizon_s, data_source_id). Re-posting a key
// overwrites the earlier value.
type ClickHouseBeliefStore struct {
	db       *sql.DB
	database string
}

// NewClickHouseBeliefStore creates a belief store in the given database.
func NewClickHouseBeliefStore(db *sql.DB, database string) *ClickHouseBeliefStore {
	return &ClickHouseBeliefStore{db: db, database: database}
}

var _ repository.BeliefStore = (*ClickHouseBeliefStore)(nil)

func (s *ClickHouseBeliefStore) table(kind models.ValueKind) string {
	return fmt.Sprintf("%s.%s_values", s.database, kind)
}

// Schema returns the DDL for all value tables.
func (s *ClickHouseBeliefStore) Schema() []string {
	stmts := make([]string, 0, len(valueKinds))
	for _, k := range valueKinds {
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	asset_id Int64,
	datetime DateTime64(3, 'UTC'),
	horizon_s Int64,
	data_source_id Int64,
	value Float64,
	inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(inserted_at)
PARTITION BY toYYYYMM(datetime)
ORDER BY (asset_id, datetime, horizon_s, data_source_id)`, s.table(k)))
	}
	return stmts
}

func (s *ClickHouseBeliefStore) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init belief tables: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseBeliefStore) Query(ctx context.Context, q repository.BeliefQuery) ([]models.TimedValue, error) {
	if q.IsEmpty() {
		return []models.TimedValue{}, nil
	}
	where, args := q.Where()
	stmt := fmt.Sprintf(
		"SELECT asset_id, datetime, horizon_s, data_source_id, value FROM %s FINAL WHERE %s ORDER BY datetime, horizon_s, data_source_id",
		s.table(q.Kind), where)
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s values: %w", q.Kind, err)
	}
	defer rows.Close()

	out := []models.TimedValue{}
	for rows.Next() {
		var (
			tv       models.TimedValue
			horizonS int64
		)
		if err := rows.Scan(&tv.AssetID, &tv.Datetime, &horizonS, &tv.DataSourceID, &tv.Value); err != nil {
			return nil, fmt.Errorf("scan %s value: %w", q.Kind, err)
		}
		tv.Kind = q.Kind
		tv.Datetime = tv.Datetime.UTC()
		tv.Horizon = time.Duration(horizonS) * time.Second
		out = append(out, tv)
	}
	return out, rows.Err()
}

// StoreBatch inserts values grouped per kind, in chunks of multi-row VALUES.
func (s *ClickHouseBeliefStore) StoreBatch(ctx context.Context, values []models.TimedValue) error {
	if len(values) == 0 {
		return nil
	}
	byKind := make(map[models.ValueKind][]models.TimedValue)
	for _, v := range values {
		byKind[v.Kind] = append(byKind[v.Kind], v)
	}

	const chunkSize = 2000
	for kind, vs := range byKind {
		if !validKind(kind) {
			return fmt.Errorf("store values: unknown kind %q", kind)
		}
		for start := 0; start < len(vs); start += chunkSize {
			end := start + chunkSize
			if end > len(vs) {
				end = len(vs)
			}
			placeholders := make([]string, 0, end-start)
			args := make([]any, 0, (end-start)*5)
			for _, v := range vs[start:end] {
				placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
				args = append(args, v.AssetID, v.Datetime.UTC(), int64(v.Horizon/time.Second), v.DataSourceID, v.Value)
			}
			stmt := fmt.Sprintf("INSERT INTO %s (asset_id, datetime, horizon_s, data_source_id, value) VALUES %s",
				s.table(kind), strings.Join(placeholders, ","))
			if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("insert %s values: %w", kind, err)
			}
		}
	}
	return nil
}

func (s *ClickHouseBeliefStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseBeliefStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func validKind(k models.ValueKind) bool {
	for _, v := range valueKinds {
		if v == k {
			return true
		}
	}
	return false
}
