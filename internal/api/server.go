//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/api/handlers"
	apimw "github.com/slipstream/mediabridge/internal/api/middleware"
	"github.com/slipstream/mediabridge/internal/api/ratelimit"
	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/health"
	"github.com/slipstream/mediabridge/internal/metadata"
	"github.com/slipstream/mediabridge/internal/scheduler"
)

// Server handles HTTP requests for the resolution API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	cfg    *config.Config

	metadataService *metadata.Service
	scheduler       *scheduler.Scheduler
	health          *health.Service
	logs            LogsProvider
	rateLimiter     *ratelimit.IPLimiter
	startTime       time.Time

	cancel context.CancelFunc
}

// Dependencies are the services the API exposes. Only Metadata is required;
// routes of nil services are not registered.
type Dependencies struct {
	Metadata  *metadata.Service
	Scheduler *scheduler.Scheduler
	Health    *health.Service
	Logs      LogsProvider
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:            e,
		logger:          logger.With().Str("component", "api").Logger(),
		cfg:             cfg,
		metadataService: deps.Metadata,
		scheduler:       deps.Scheduler,
		health:          deps.Health,
		logs:            deps.Logs,
		startTime:       time.Now(),
	}

	if cfg.RateLimit.Enabled {
		s.rateLimiter = ratelimit.NewIPLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	e.HTTPErrorHandler = s.errorHandler

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Range"},
		ExposeHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	if s.rateLimiter != nil {
		// Media playback issues many Range requests, so passthroughs are exempt.
		s.echo.Use(s.rateLimiter.Middleware(func(c echo.Context) bool {
			return c.Path() == "/health" || isProxyRequest(c)
		}))
	}

	s.echo.Use(apimw.SecurityHeaders(isProxyRequest))

	// Gzip compression, never on proxied media
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level:   5,
		Skipper: isProxyRequest,
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/status", s.getStatus)

	metadataHandlers := metadata.NewHandlers(s.metadataService)
	metadataHandlers.RegisterRoutes(s.echo.Group(""))
	metadataHandlers.RegisterCacheRoutes(s.echo.Group("/cache"))

	if s.scheduler != nil {
		handlers.NewSchedulerHandler(s.scheduler).RegisterRoutes(s.echo.Group("/scheduler/tasks"))
	}

	if s.logs != nil {
		NewLogsHandlers(s.logs).RegisterRoutes(s.echo.Group("/logs"))
	}

	if s.cfg.Proxy.Enabled {
		if err := s.setupProxies(); err != nil {
			s.logger.Error().Err(err).Msg("Failed to configure asset proxies, passthrough disabled")
		}
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if s.rateLimiter != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.rateLimiter.StartCleanup(ctx, time.Minute)
	}

	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.cancel != nil {
		s.cancel()
	}

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// --- Handler implementations ---

// healthCheck always answers 200 while the process serves requests. Upstream
// trouble shows up as a "degraded" status.
func (s *Server) healthCheck(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	return c.JSON(http.StatusOK, s.health.GetAll())
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":        config.Version,
		"startTime":      s.startTime.Format(time.RFC3339),
		"uptime":         time.Since(s.startTime).Round(time.Second).String(),
		"tmdbConfigured": s.cfg.TMDB.APIKey != "",
		"cache":          s.metadataService.Cache().Stats(),
		"upstreamsOk":    s.upstreamsOK(),
	})
}

// upstreamsOK reports per-upstream health, or nil without a health service.
func (s *Server) upstreamsOK() map[string]bool {
	if s.health == nil {
		return nil
	}
	return map[string]bool{
		metadata.UpstreamTMDB:    s.health.IsHealthy(metadata.UpstreamTMDB),
		metadata.UpstreamCatalog: s.health.IsHealthy(metadata.UpstreamCatalog),
	}
}

// errorHandler renders every error as a JSON object with an "error" field.
// Structured messages, such as upstream failure details, are sent as is.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var body map[string]any

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch msg := he.Message.(type) {
		case map[string]any:
			body = msg
		case string:
			body = map[string]any{"error": msg}
		case nil:
			body = map[string]any{"error": http.StatusText(status)}
		default:
			body = map[string]any{"error": fmt.Sprint(msg)}
		}
	} else {
		body = map[string]any{"error": http.StatusText(status)}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status", status).Str("uri", c.Request().RequestURI).Msg("request failed")
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to write error response")
	}
}

func isProxyRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasPrefix(path, streamPrefix+"/") || strings.HasPrefix(path, subtitlePrefix+"/")
}
