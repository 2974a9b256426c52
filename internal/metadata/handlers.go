package metadata

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/mediabridge/internal/fetch"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// Handlers provides HTTP handlers for resolution operations.
type Handlers struct {
	service *Service
}

// NewHandlers creates new metadata handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the resolution routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/movie/:id", h.GetMovie)
	g.GET("/tv/:id", h.GetSeries)
	g.GET("/tv/:id/:season/:episode", h.GetEpisode)
}

// RegisterCacheRoutes registers cache maintenance routes.
func (h *Handlers) RegisterCacheRoutes(g *echo.Group) {
	g.GET("/stats", h.GetCacheStats)
	g.DELETE("", h.ClearCache)
}

// GetMovie resolves a movie by TMDB id.
// GET /movie/:id
func (h *Handlers) GetMovie(c echo.Context) error {
	result, err := h.service.ResolveMovie(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetSeries resolves a series at the series level.
// GET /tv/:id
func (h *Handlers) GetSeries(c echo.Context) error {
	result, err := h.service.ResolveSeries(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetEpisode resolves one episode of a series.
// GET /tv/:id/:season/:episode
func (h *Handlers) GetEpisode(c echo.Context) error {
	season, err := strconv.Atoi(c.Param("season"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid season")
	}
	episode, err := strconv.Atoi(c.Param("episode"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid episode")
	}

	result, err := h.service.ResolveEpisode(c.Request().Context(), c.Param("id"), season, episode)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// GetCacheStats returns cache counters.
// GET /cache/stats
func (h *Handlers) GetCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Cache().Stats())
}

// ClearCache drops one entry when ?key= is given, otherwise every entry.
// DELETE /cache
func (h *Handlers) ClearCache(c echo.Context) error {
	if key := c.QueryParam("key"); key != "" {
		if !h.service.Cache().Invalidate(key) {
			return echo.NewHTTPError(http.StatusNotFound, "cache key not found")
		}
		return c.JSON(http.StatusOK, map[string]int{"removed": 1})
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": h.service.Cache().Clear()})
}

// HTTPStatus maps a resolution error to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, tmdb.ErrAPIKeyMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toHTTPError(err error) *echo.HTTPError {
	status := HTTPStatus(err)
	he := echo.NewHTTPError(status, err.Error()).SetInternal(err)

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		detail := map[string]any{
			"error": err.Error(),
			"op":    upstream.Op,
		}
		if upstream.URL != "" {
			detail["url"] = upstream.URL
		}
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) {
			detail["upstreamStatus"] = statusErr.StatusCode
		}
		he.Message = detail
	}
	return he
}
