package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
)

const dashboardMeasurement = "dashboard_metrics"

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxMetricsSink exports dashboard metrics as InfluxDB points.
type InfluxMetricsSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

var _ drepo.MetricsSink = (*InfluxMetricsSink)(nil)

// NewInfluxMetricsSink connects and verifies the server is healthy.
func NewInfluxMetricsSink(ctx context.Context, cfg InfluxConfig) (*InfluxMetricsSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect influxdb: %w", err)
	}
	return &InfluxMetricsSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (s *InfluxMetricsSink) WriteMetrics(ctx context.Context, resource string, at time.Time, m models.Metrics) error {
	p := metricsPoint(resource, at, m)
	if p == nil {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("write %s point: %w", dashboardMeasurement, err)
	}
	return nil
}

// metricsPoint drops figures that could not be computed; nil when none remain.
func metricsPoint(resource string, at time.Time, m models.Metrics) *write.Point {
	fields := make(map[string]interface{})
	for k, v := range m.Fields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(dashboardMeasurement, map[string]string{"resource": resource}, fields, at)
}

func (s *InfluxMetricsSink) Close() {
	s.client.Close()
}
