package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/labstack/echo/v4"

	"bvp/internal/domain/models"
	drepo "bvp/internal/domain/repository"
	"bvp/internal/service/ratelimit"
	"bvp/internal/usecase"
	xhttp "bvp/pkg/http"
	xlogger "bvp/pkg/logger"
	xutil "bvp/pkg/util"
)

// V1_1Handler serves version 1.1 of the BVP data API.
type V1_1Handler struct {
	logger    *xlogger.Logger
	eas       EntityAddresses
	catalog   drepo.Catalog
	ingest    *usecase.DataIngest
	retrieval *usecase.DataRetrieval
	limiter   *ratelimit.Limiter
}

func NewV1_1Handler(
	logger *xlogger.Logger,
	eas EntityAddresses,
	catalog drepo.Catalog,
	ingest *usecase.DataIngest,
	retrieval *usecase.DataRetrieval,
	limiter *ratelimit.Limiter,
) *V1_1Handler {
	return &V1_1Handler{
		logger:    logger,
		eas:       eas,
		catalog:   catalog,
		ingest:    ingest,
		retrieval: retrieval,
		limiter:   limiter,
	}
}

func (h *V1_1Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1_1", RequireUser(responseType), RateLimit(h.limiter, responseType))
	g.POST("/postPriceData", h.PostPriceData)
	g.POST("/postWeatherData", h.PostWeatherData)
	g.POST("/postMeterData", h.PostMeterData)
	g.GET("/getMeterData", h.GetMeterData)
	g.GET("/getPrognosis", h.GetPrognosis)
}

// responseType names the response message of a route, e.g.
// /api/v1_1/postPriceData answers with PostPriceDataResponse.
func responseType(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	if name == "" {
		return "Response"
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r) + "Response"
}

func (h *V1_1Handler) PostPriceData(c echo.Context) error {
	const msgType = "PostPriceDataResponse"
	defer observe("postPriceData", time.Now())

	req := &models.PostPriceDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, msgType, verr)
	}
	market, err := h.eas.Market(req.Market)
	if err != nil {
		return fail(c, h.logger, "postPriceData", msgType, err)
	}
	s, err := parseSeries(req.Start, req.Duration, req.Horizon, req.Values)
	if err != nil {
		return fail(c, h.logger, "postPriceData", msgType, err)
	}
	res := s.Resolution()
	if res%(15*time.Minute) != 0 {
		return fail(c, h.logger, "postPriceData", msgType, usecase.InvalidResolution())
	}
	s.Values = ConvertTo15Min(s.Values, res)

	if err := h.ingest.PostPrices(c.Request().Context(), userID(c), market, req.Unit, s); err != nil {
		return fail(c, h.logger, "postPriceData", msgType, err)
	}
	return processed(c, msgType, nil)
}

func (h *V1_1Handler) PostWeatherData(c echo.Context) error {
	const msgType = "PostWeatherDataResponse"
	defer observe("postWeatherData", time.Now())

	req := &models.PostWeatherDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, msgType, verr)
	}
	groups, err := h.groups(req.GroupedPost, func(g models.EntityGroup) (json.RawMessage, json.RawMessage) {
		return g.Sensor, g.Sensors
	})
	if err != nil {
		return fail(c, h.logger, "postWeatherData", msgType, err)
	}

	var posts []usecase.WeatherPost
	for _, g := range groups {
		for _, ea := range g.addresses {
			ref, err := h.eas.Sensor(ea)
			if err != nil {
				return fail(c, h.logger, "postWeatherData", msgType, err)
			}
			posts = append(posts, usecase.WeatherPost{Sensor: ref, Series: g.series})
		}
	}
	if err := h.ingest.PostWeather(c.Request().Context(), userID(c), req.Unit, posts); err != nil {
		return fail(c, h.logger, "postWeatherData", msgType, err)
	}
	return processed(c, msgType, nil)
}

func (h *V1_1Handler) PostMeterData(c echo.Context) error {
	const msgType = "PostMeterDataResponse"
	defer observe("postMeterData", time.Now())

	req := &models.PostMeterDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, msgType, verr)
	}
	groups, err := h.groups(req.GroupedPost, func(g models.EntityGroup) (json.RawMessage, json.RawMessage) {
		return g.Connection, g.Connections
	})
	if err != nil {
		return fail(c, h.logger, "postMeterData", msgType, err)
	}

	var posts []usecase.MeterPost
	for _, g := range groups {
		for _, ea := range g.addresses {
			ref, err := h.eas.Connection(ea)
			if err != nil {
				return fail(c, h.logger, "postMeterData", msgType, err)
			}
			posts = append(posts, usecase.MeterPost{Connection: ref, Series: g.series})
		}
	}
	if err := h.ingest.PostMeter(c.Request().Context(), userID(c), req.Unit, posts); err != nil {
		return fail(c, h.logger, "postMeterData", msgType, err)
	}
	return processed(c, msgType, nil)
}

func (h *V1_1Handler) GetMeterData(c echo.Context) error {
	const msgType = "GetMeterDataResponse"
	defer observe("getMeterData", time.Now())

	req := &models.GetMeterDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, msgType, verr)
	}
	return h.getPower(c, msgType, "getMeterData", getParams{
		connections: append(req.Connection, req.Connections...),
		start:       req.Start,
		duration:    req.Duration,
		resolution:  req.Resolution,
		horizon:     req.Horizon,
		unit:        req.Unit,
	}, h.retrieval.MeterData)
}

func (h *V1_1Handler) GetPrognosis(c echo.Context) error {
	const msgType = "GetPrognosisResponse"
	defer observe("getPrognosis", time.Now())

	req := &models.GetPrognosisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, msgType, verr)
	}
	return h.getPower(c, msgType, "getPrognosis", getParams{
		connections: append(req.Connection, req.Connections...),
		start:       req.Start,
		duration:    req.Duration,
		resolution:  req.Resolution,
		horizon:     req.Horizon,
		unit:        req.Unit,
	}, h.retrieval.Prognosis)
}

type getParams struct {
	connections []string
	start       string
	duration    string
	resolution  string
	horizon     string
	unit        string
}

type retrieveFunc func(ctx context.Context, userID int64, q usecase.RetrievalQuery) ([]usecase.ConnectionValues, error)

func (h *V1_1Handler) getPower(c echo.Context, msgType, endpoint string, p getParams, retrieve retrieveFunc) error {
	ctx := c.Request().Context()
	if p.unit != "MW" {
		return fail(c, h.logger, endpoint, msgType, usecase.InvalidUnit("power", "MW"))
	}

	var items []string
	for _, item := range p.connections {
		items = append(items, strings.Split(item, ",")...)
	}
	if len(items) == 0 || ContainsEmptyItems([][]string{items}) {
		return fail(c, h.logger, endpoint, msgType, usecase.Reject(usecase.StatusUnrecognizedAsset, "No connection given."))
	}
	eas, err := ReplaceNameWithEA(ctx, h.catalog, h.eas, items)
	if err != nil {
		return fail(c, h.logger, endpoint, msgType, err)
	}
	refs := make([]usecase.ConnectionRef, len(eas))
	for i, ea := range eas {
		if refs[i], err = h.eas.Connection(ea); err != nil {
			return fail(c, h.logger, endpoint, msgType, err)
		}
	}

	start, dur, err := parsePeriod(p.start, p.duration)
	if err != nil {
		return fail(c, h.logger, endpoint, msgType, err)
	}
	q := usecase.RetrievalQuery{Connections: refs, Start: start, End: start.Add(dur)}
	if p.resolution != "" {
		if q.Resolution, err = xutil.ParseISODuration(p.resolution); err != nil {
			return fail(c, h.logger, endpoint, msgType, usecase.InvalidResolution())
		}
	}
	if p.horizon != "" {
		hz, rolling, err := xutil.ParseHorizon(p.horizon)
		if err != nil {
			return fail(c, h.logger, endpoint, msgType, usecase.Reject(usecase.StatusInvalidHorizon, "Cannot parse horizon %s.", p.horizon))
		}
		q.Horizon, q.Rolling = &hz, rolling
	}

	results, err := retrieve(ctx, userID(c), q)
	if err != nil {
		return fail(c, h.logger, endpoint, msgType, err)
	}

	keys := make([][]string, len(results))
	values := make([][]models.Float, len(results))
	resolution := q.Resolution
	for i, r := range results {
		keys[i] = []string{h.eas.ConnectionAddress(r.Connection.OwnerID, r.Connection.AssetID)}
		values[i] = toFloats(r.Values)
		if resolution == 0 && len(r.Values) > 0 {
			resolution = dur / time.Duration(len(r.Values))
		}
	}
	body := GroupsToDict(keys, values, "connection", "connections")
	body["start"] = start.Format(time.RFC3339)
	body["duration"] = xutil.FormatISODuration(dur)
	body["unit"] = p.unit
	if resolution > 0 {
		body["resolution"] = xutil.FormatISODuration(resolution)
	}
	return processed(c, msgType, body)
}

// postGroup is one group of addresses sharing a value series.
type postGroup struct {
	addresses []string
	series    usecase.Series
}

// groups reads the entity groups of a weather or meter post. Top-level
// addresses and values count as a single group when no groups are given.
func (h *V1_1Handler) groups(p models.GroupedPost, addressesOf func(models.EntityGroup) (json.RawMessage, json.RawMessage)) ([]postGroup, error) {
	raw := p.Groups
	if len(raw) == 0 {
		raw = []models.EntityGroup{p.EntityGroup}
	}

	out := make([]postGroup, 0, len(raw))
	for _, g := range raw {
		singular, plural := addressesOf(g)
		addrs, err := listOf[string](singular, plural)
		if err != nil {
			return nil, usecase.Reject(usecase.StatusUnrecognizedRequest, "Cannot read entity addresses: %v.", err)
		}
		values, err := listOf[float64](g.Value, g.Values)
		if err != nil {
			return nil, usecase.Reject(usecase.StatusUnrecognizedRequest, "Cannot read values: %v.", err)
		}
		if len(addrs) == 0 || ContainsEmptyItems([][]string{addrs}) {
			return nil, usecase.Reject(usecase.StatusUnrecognizedRequest, "Missing entity address in group.")
		}
		s, err := parseSeries(p.Start, p.Duration, p.Horizon, values)
		if err != nil {
			return nil, err
		}
		out = append(out, postGroup{addresses: addrs, series: s})
	}
	return out, nil
}

// listOf reads a field given under its singular or its plural key.
func listOf[T any](singular, plural json.RawMessage) ([]T, error) {
	items, err := ParseAsList[T](singular)
	if err != nil || len(items) > 0 {
		return items, err
	}
	return ParseAsList[T](plural)
}

func parsePeriod(startStr, durStr string) (time.Time, time.Duration, error) {
	start, ok := xutil.ParseTime(startStr)
	if !ok {
		return time.Time{}, 0, usecase.Reject(usecase.StatusInvalidTimezone, "Cannot parse start %s, a timezone is required.", startStr)
	}
	dur, err := xutil.ParseISODuration(durStr)
	if err != nil || dur <= 0 {
		return time.Time{}, 0, usecase.Reject(usecase.StatusUnrecognizedRequest, "Cannot parse duration %s.", durStr)
	}
	return start, dur, nil
}

func parseSeries(startStr, durStr, horizonStr string, values []float64) (usecase.Series, error) {
	start, dur, err := parsePeriod(startStr, durStr)
	if err != nil {
		return usecase.Series{}, err
	}
	if len(values) == 0 {
		return usecase.Series{}, usecase.Reject(usecase.StatusUnrecognizedRequest, "No values given.")
	}
	s := usecase.Series{Start: start, End: start.Add(dur), Values: values}
	if horizonStr != "" {
		hz, rolling, err := xutil.ParseHorizon(horizonStr)
		if err != nil {
			return usecase.Series{}, usecase.Reject(usecase.StatusInvalidHorizon, "Cannot parse horizon %s.", horizonStr)
		}
		s.Horizon, s.Rolling = hz, rolling
	}
	return s, nil
}
