package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	applogger "bvp/pkg/logger"
)

// UserHeader names the acting user of a request.
const UserHeader = "X-BVP-User"

var (
	accessOnce sync.Once

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bvp_http_requests_total",
		Help: "HTTP requests by route template and status class",
	}, []string{"route", "method", "class"})

	requestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bvp_http_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
	}, []string{"route", "method"})

	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bvp_http_in_flight_requests",
		Help: "Requests being served",
	})
)

// Access logs every request once and records its metrics. Routes are
// labelled by their echo template. 5xx responses log at error level and
// requests slower than slow at warn level.
func Access(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	accessOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestSeconds, inFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			defer inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			requestsTotal.WithLabelValues(route, req.Method, statusClass(res.Status)).Inc()
			requestSeconds.WithLabelValues(route, req.Method).Observe(elapsed.Seconds())

			fields := []applogger.Field{
				applogger.String("method", req.Method),
				applogger.String("uri", req.RequestURI),
				applogger.Int("status", res.Status),
				applogger.Int64("bytes", res.Size),
				applogger.Duration("latency", elapsed),
				applogger.String("remote", c.RealIP()),
				applogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
			}
			if user := req.Header.Get(UserHeader); user != "" {
				fields = append(fields, applogger.String("user", user))
			}

			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && elapsed >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Info("http request", fields...)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
