package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
	"bvp/internal/service/metrics"
	"bvp/internal/services/analytics"
	"bvp/internal/services/timeseries"
	"bvp/pkg/cache"
	"bvp/pkg/logger"
)

// DashboardQuery selects what the analytics dashboard shows. Resource is an
// asset name, an asset type, or empty for all assets.
type DashboardQuery struct {
	Resource              string
	Market                string
	SensorType            string
	Start                 time.Time
	End                   time.Time
	Resolution            time.Duration
	ForecastHorizon       time.Duration
	UnitFactor            float64
	ConsumptionAsPositive bool
}

func (q DashboardQuery) cacheKey() string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%d|%d|%g|%t",
		q.Resource, q.Market, q.SensorType,
		q.Start.UnixNano(), q.End.UnixNano(),
		q.Resolution, q.ForecastHorizon, q.UnitFactor, q.ConsumptionAsPositive)
	return cache.Key(AnalyticsCachePrefix+"dashboard", cache.Fingerprint(raw))
}

// AnalyticsService builds dashboard reports, caching them per query.
type AnalyticsService struct {
	sources analytics.Sources
	catalog drepo.Catalog
	cache   cache.Service
	ttl     time.Duration
	sink    drepo.MetricsSink
	log     *logger.Logger
}

// NewAnalyticsService wires the dashboard. c and sink may be nil.
func NewAnalyticsService(sources analytics.Sources, c cache.Service, ttl time.Duration, sink drepo.MetricsSink, log *logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		sources: sources,
		catalog: sources.Catalog,
		cache:   c,
		ttl:     ttl,
		sink:    sink,
		log:     log,
	}
}

// Dashboard returns the report for q, from cache when possible.
func (s *AnalyticsService) Dashboard(ctx context.Context, q DashboardQuery) (analytics.Report, error) {
	if !q.End.After(q.Start) {
		return analytics.Report{}, Reject(StatusUnrecognizedRequest, "The end of the period must be after its start.")
	}
	if q.Resolution <= 0 || q.Resolution%(15*time.Minute) != 0 {
		return analytics.Report{}, InvalidResolution()
	}
	if q.UnitFactor <= 0 {
		return analytics.Report{}, InvalidUnitFactor()
	}

	key := q.cacheKey()
	if s.cache != nil {
		var cached analytics.Report
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			metrics.DashboardCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("read dashboard cache", logger.String("key", key), logger.Error(err))
		}
		metrics.DashboardCache.WithLabelValues("miss").Inc()
	}

	assets, err := s.resolveAssets(ctx, q.Resource)
	if err != nil {
		return analytics.Report{}, err
	}
	report, err := analytics.Dashboard(ctx, s.sources, analytics.DashboardRequest{
		Params: analytics.Params{
			Window:          drepo.Window{Start: q.Start, End: q.End},
			Resolution:      q.Resolution,
			ForecastHorizon: q.ForecastHorizon,
		},
		Assets:                    assets,
		Market:                    q.Market,
		SensorType:                q.SensorType,
		UnitFactor:                q.UnitFactor,
		ShowConsumptionAsPositive: q.ConsumptionAsPositive,
	})
	if errors.Is(err, timeseries.ErrIncompatibleResolution) {
		return analytics.Report{}, InvalidResolution()
	}
	if err != nil {
		return analytics.Report{}, fmt.Errorf("dashboard %q: %w", q.Resource, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
			s.log.Warn("write dashboard cache", logger.String("key", key), logger.Error(err))
		}
	}
	if s.sink != nil {
		if err := s.sink.WriteMetrics(ctx, resourceLabel(q.Resource), q.End, report.Metrics); err != nil {
			s.log.Warn("export dashboard metrics", logger.String("resource", q.Resource), logger.Error(err))
		}
	}
	return report, nil
}

// resolveAssets maps a resource to its assets: a single asset by name, or
// every asset of a type.
func (s *AnalyticsService) resolveAssets(ctx context.Context, resource string) ([]models.Asset, error) {
	if resource == "" || resource == "all" {
		return s.catalog.Assets(ctx, "")
	}
	a, err := s.catalog.Asset(ctx, resource)
	if err == nil {
		return []models.Asset{a}, nil
	}
	if !errors.Is(err, drepo.ErrNotFound) {
		return nil, fmt.Errorf("look up asset %q: %w", resource, err)
	}
	assets, err := s.catalog.Assets(ctx, resource)
	if err != nil {
		return nil, fmt.Errorf("list %q assets: %w", resource, err)
	}
	if len(assets) == 0 {
		return nil, Reject(StatusUnrecognizedAsset, "No asset or asset type is known by the name %s.", resource)
	}
	return assets, nil
}

func resourceLabel(resource string) string {
	if resource == "" {
		return "all"
	}
	return resource
}
