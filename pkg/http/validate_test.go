package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type windowRequest struct {
	Start      string `query:"start" validate:"required,tz"`
	Resolution string `query:"resolution" default:"PT15M" validate:"iso8601"`
	Resource   string `query:"resource" validate:"required"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?start=2015-01-01T00:00:00Z&resource=wind", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var r windowRequest
	require.Nil(t, ReadAndValidateRequest(c, &r))
	assert.Equal(t, "PT15M", r.Resolution)
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?start=2015-01-01T00:00:00&resolution=15min", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var r windowRequest
	res := ReadAndValidateRequest(c, &r)
	errs, ok := res.([]ValidationError)
	require.True(t, ok)

	codes := map[string]string{}
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	assert.Equal(t, "ERR_TZ", codes["start"])
	assert.Equal(t, "ERR_ISO8601", codes["resolution"])
	assert.Equal(t, "ERR_REQUIRED", codes["resource"])
}

func TestValidateStruct(t *testing.T) {
	r := windowRequest{Start: "2015-01-01T00:00:00+01:00", Resource: "x", Resolution: "R/PT1H"}
	assert.Nil(t, ValidateStruct(context.Background(), &r))
}

func TestDataResponseWritesStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, AppErrorResponse(c, BadRequestError("bad window")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_BAD_REQUEST")
}
