package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"bvp/internal/usecase"
	xlogger "bvp/pkg/logger"
	xutil "bvp/pkg/util"
)

var epoch = time.Unix(0, 0).UTC()

// MonitorHandler serves liveness and task heartbeat endpoints.
type MonitorHandler struct {
	logger *xlogger.Logger
	runs   *usecase.TaskRuns
}

func NewMonitorHandler(logger *xlogger.Logger, runs *usecase.TaskRuns) *MonitorHandler {
	return &MonitorHandler{logger: logger, runs: runs}
}

func (h *MonitorHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/ping", h.Ping)
	g.GET("/getLatestTaskRun", h.GetLatestTaskRun)
	g.POST("/postLatestTaskRun", h.PostLatestTaskRun)
}

func (h *MonitorHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "ok"})
}

func (h *MonitorHandler) GetLatestTaskRun(c echo.Context) error {
	name := c.QueryParam("name")
	freq := h.runs.Frequency(name)
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status": "ERROR", "reason": "No task name given.", "lastrun": epoch, "frequency": freq,
		})
	}

	st, err := h.runs.Latest(c.Request().Context(), name)
	switch {
	case errors.Is(err, usecase.ErrNoTaskRun):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"status": "ERROR", "reason": "Task " + name + " has no last run time.", "lastrun": epoch, "frequency": freq,
		})
	case err != nil:
		h.logger.Error("task run lookup failed", xlogger.String("task", name), xlogger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"status": "ERROR", "reason": err.Error(), "lastrun": epoch, "frequency": freq,
		})
	}

	status := "ERROR"
	if st.OK {
		status = "OK"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"lastrun": st.LastRun, "status": status, "frequency": st.Frequency,
	})
}

func (h *MonitorHandler) PostLatestTaskRun(c echo.Context) error {
	name := c.FormValue("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "ERROR", "reason": "No task name given."})
	}

	ok := true
	if s := c.FormValue("status"); s != "" {
		ok = strings.EqualFold(s, "true")
	}

	var at *time.Time
	if s := c.FormValue("datetime"); s != "" {
		t, parsed := xutil.ParseTime(s)
		if !parsed {
			return c.JSON(http.StatusBadRequest, map[string]string{"status": "ERROR", "reason": "Cannot parse datetime " + s + "."})
		}
		at = &t
	}

	if err := h.runs.Record(c.Request().Context(), name, ok, at); err != nil {
		h.logger.Error("task run not saved", xlogger.String("task", name), xlogger.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "ERROR", "reason": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "OK"})
}
