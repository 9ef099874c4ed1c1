package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"bvp/internal/domain/models"
	"bvp/internal/usecase"
	xhttp "bvp/pkg/http"
	xlogger "bvp/pkg/logger"
	xutil "bvp/pkg/util"
)

// AnalyticsDefaults fill in what a dashboard request leaves out.
type AnalyticsDefaults struct {
	Resolution      time.Duration
	ForecastHorizon time.Duration
}

type AnalyticsHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.AnalyticsService
	defaults AnalyticsDefaults
}

func NewAnalyticsHandler(logger *xlogger.Logger, svc *usecase.AnalyticsService, defaults AnalyticsDefaults) *AnalyticsHandler {
	return &AnalyticsHandler{logger: logger, svc: svc, defaults: defaults}
}

func (h *AnalyticsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/analytics", h.Dashboard)
}

func (h *AnalyticsHandler) Dashboard(c echo.Context) error {
	const msgType = "GetAnalyticsResponse"
	defer observe("analytics", time.Now())

	req := &models.AnalyticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start, ok1 := xutil.ParseTime(req.Start)
	end, ok2 := xutil.ParseTime(req.End)
	if !ok1 || !ok2 {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_TIME",
			Field:   "start",
			Message: "start and end must be RFC 3339 datetimes",
		}})
	}

	q := usecase.DashboardQuery{
		Resource:              req.Resource,
		Market:                req.Market,
		SensorType:            req.SensorType,
		Start:                 start,
		End:                   end,
		Resolution:            h.defaults.Resolution,
		ForecastHorizon:       h.defaults.ForecastHorizon,
		ConsumptionAsPositive: req.ConsumptionAsPositive,
	}
	if err := h.parseDurations(req, &q); err != nil {
		return fail(c, h.logger, "analytics", msgType, err)
	}
	factor, err := strconv.ParseFloat(req.UnitFactor, 64)
	if err != nil || factor <= 0 {
		return fail(c, h.logger, "analytics", msgType, usecase.InvalidUnitFactor())
	}
	q.UnitFactor = factor

	report, err := h.svc.Dashboard(c.Request().Context(), q)
	if err != nil {
		return fail(c, h.logger, "analytics", msgType, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

// parseDurations overrides the defaults with the requested resolution and
// horizon. A dashboard compares against one fixed horizon, so a rolling
// horizon is rejected.
func (h *AnalyticsHandler) parseDurations(req *models.AnalyticsRequest, q *usecase.DashboardQuery) error {
	if req.Resolution != "" {
		d, err := xutil.ParseISODuration(req.Resolution)
		if err != nil {
			return usecase.InvalidResolution()
		}
		q.Resolution = d
	}
	if req.ForecastHorizon != "" {
		d, rolling, err := xutil.ParseHorizon(req.ForecastHorizon)
		if err != nil || rolling {
			return usecase.Reject(usecase.StatusInvalidHorizon, "The forecast horizon should be a single ISO 8601 duration, got %s.", req.ForecastHorizon)
		}
		q.ForecastHorizon = d
	}
	return nil
}
