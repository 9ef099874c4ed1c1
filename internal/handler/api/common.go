package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"bvp/internal/service/metrics"
	"bvp/internal/service/ratelimit"
	"bvp/internal/usecase"
	xhttp "bvp/pkg/http"
	xlogger "bvp/pkg/logger"
)

const (
	// UserHeader carries the id of the authenticated user, set by the gateway.
	UserHeader = "X-BVP-User"

	ctxUserID = "bvp_user_id"

	statusProcessed    = "PROCESSED"
	statusUnauthorized = "UNAUTHORIZED"
	statusRateLimited  = "TOO_MANY_REQUESTS"
)

// typed is the body of every BVP message response.
func typed(msgType, status, message string) map[string]interface{} {
	return map[string]interface{}{"type": msgType, "status": status, "message": message}
}

func processed(c echo.Context, msgType string, extra map[string]interface{}) error {
	body := typed(msgType, statusProcessed, "Request has been processed.")
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(http.StatusOK, body)
}

// fail renders rejections as 400 typed messages and anything else as a 500.
func fail(c echo.Context, log *xlogger.Logger, endpoint, msgType string, err error) error {
	var rej *usecase.RejectError
	if errors.As(err, &rej) {
		return c.JSON(http.StatusBadRequest, typed(msgType, rej.Status, rej.Message))
	}
	metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
	log.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err))
}

// invalid maps validation failures of a BVP message to its rejection status.
func invalid(c echo.Context, msgType string, verr interface{}) error {
	status, message := usecase.StatusUnrecognizedRequest, "The request could not be understood."
	if errs, ok := verr.([]xhttp.ValidationError); ok && len(errs) > 0 {
		e := errs[0]
		message = e.Message
		switch {
		case e.Field == "type":
			status = usecase.StatusInvalidMessageType
			message = "Request message should specify type '" + strings.TrimSuffix(msgType, "Response") + "Request'."
		case e.Code == "ERR_TZ":
			status = usecase.StatusInvalidTimezone
		case e.Field == "horizon":
			status = usecase.StatusInvalidHorizon
		case e.Field == "resolution":
			status = usecase.StatusInvalidResolution
		}
	}
	return c.JSON(http.StatusBadRequest, typed(msgType, status, message))
}

// userID returns the user set by RequireUser.
func userID(c echo.Context) int64 {
	id, _ := c.Get(ctxUserID).(int64)
	return id
}

// RequireUser rejects requests without a valid user header. msgType names
// the response type for the rejection.
func RequireUser(msgType func(path string) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := strconv.ParseInt(c.Request().Header.Get(UserHeader), 10, 64)
			if err != nil || id <= 0 {
				return c.JSON(http.StatusUnauthorized, typed(msgType(c.Path()), statusUnauthorized, "You could not be properly authenticated."))
			}
			c.Set(ctxUserID, id)
			return next(c)
		}
	}
}

// RateLimit bounds the posts of each user. A nil limiter disables it.
func RateLimit(l *ratelimit.Limiter, msgType func(path string) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodPost {
				return next(c)
			}
			if !l.Allow(strconv.FormatInt(userID(c), 10)) {
				return c.JSON(http.StatusTooManyRequests, typed(msgType(c.Path()), statusRateLimited, "Too many requests, please slow down."))
			}
			return next(c)
		}
	}
}

// observe records the latency of an endpoint.
func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
