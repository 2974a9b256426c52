//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/mediabridge/internal/logger"
)

// LogsProvider provides access to recent log entries.
type LogsProvider interface {
	RecentLogs() []logger.LogEntry
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance.
func NewLogsHandlers(provider LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
}

// GetRecentLogs returns recent log entries from the ring buffer, optionally
// filtered by ?level= and cut to the newest ?limit= entries.
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}

	logs := h.provider.RecentLogs()
	level := c.QueryParam("level")

	filtered := make([]logger.LogEntry, 0, len(logs))
	for _, entry := range logs {
		if level == "" || entry.Level == level {
			filtered = append(filtered, entry)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return c.JSON(http.StatusOK, filtered)
}
