package metadata

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/catalog"
	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/fetch"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// Upstream ids reported to the HealthReporter.
const (
	UpstreamTMDB    = "tmdb"
	UpstreamCatalog = "catalog"
)

// Service is the entry point for resolutions. Every lookup goes through the
// cache, which calls the resolver on a miss.
type Service struct {
	resolver *Resolver
	cache    *Cache
	health   HealthReporter
	logger   zerolog.Logger
}

// NewService creates a metadata service with real API clients sharing one
// retrying executor.
func NewService(cfg *config.Config, getter fetch.Getter, logger zerolog.Logger) *Service {
	policy := fetch.PolicyFromConfig(cfg.Retry)

	tmdbClient := tmdb.NewClient(cfg.TMDB, getter, logger)
	catalogClient := catalog.NewClient(cfg.Catalog, getter, policy, logger)
	matcher := catalog.NewMatcher(catalog.DefaultParser(), catalog.MatcherOptions{
		MinOverlap:    cfg.Catalog.MinOverlap,
		YearTolerance: cfg.Catalog.YearTolerance,
	})

	resolver := NewResolver(tmdbClient, catalogClient, matcher, ResolverOptions{
		AlternativeTitles: cfg.TMDB.AlternativeTitles,
		Candidates: CandidateOptions{
			Countries: cfg.Catalog.AlternateCountries,
			Max:       cfg.Catalog.MaxCandidates,
		},
	}, logger)

	cache := NewCache(CacheConfig{
		TTL:                  cfg.Cache.TTL,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
		StaleWindow:          cfg.Cache.StaleWindow,
		RefreshTimeout:       cfg.Cache.RefreshTimeout,
		MaxEntries:           cfg.Cache.MaxEntries,
	}, logger)

	if !tmdbClient.IsConfigured() {
		logger.Warn().Str("provider", tmdbClient.Name()).Msg("API key is not configured, resolutions will fail")
	}

	return NewServiceWithResolver(resolver, cache, logger)
}

// NewServiceWithResolver creates a service from prebuilt parts (for testing/mocking).
func NewServiceWithResolver(resolver *Resolver, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{
		resolver: resolver,
		cache:    cache,
		logger:   logger.With().Str("component", "metadata").Logger(),
	}
}

// SetHealthReporter sets the sink for upstream health updates.
func (s *Service) SetHealthReporter(h HealthReporter) {
	s.health = h
}

// Cache exposes the resolution cache for maintenance tasks.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Resolve validates req and returns its cached or freshly resolved result.
func (s *Service) Resolve(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.cache.GetOrResolve(ctx, req.CacheKey(), func(ctx context.Context) (*Result, error) {
		result, err := s.resolver.Resolve(ctx, req)
		s.reportHealth(result, err)
		return result, err
	})
}

// reportHealth maps a resolution outcome onto the upstreams it touched.
// Cancellations and invalid requests say nothing about upstream state.
func (s *Service) reportHealth(result *Result, err error) {
	if s.health == nil {
		return
	}

	var upstream *UpstreamError
	switch {
	case err == nil:
		s.health.ClearStatus(UpstreamTMDB)
		if result.Partial && slices.Contains(result.Missing, MissingDownloadData) {
			s.health.SetWarning(UpstreamCatalog, "download descriptor unavailable")
		} else {
			s.health.ClearStatus(UpstreamCatalog)
		}
	case errors.As(err, &upstream):
		id := UpstreamCatalog
		if strings.HasPrefix(upstream.Op, UpstreamTMDB) {
			id = UpstreamTMDB
		} else {
			s.health.ClearStatus(UpstreamTMDB)
		}
		s.health.SetError(id, err.Error())
	case errors.Is(err, tmdb.ErrAPIKeyMissing):
		s.health.SetError(UpstreamTMDB, "API key not configured")
	case errors.Is(err, ErrNotFound):
		s.health.ClearStatus(UpstreamTMDB)
	}
}

// ResolveMovie resolves a movie by TMDB id.
func (s *Service) ResolveMovie(ctx context.Context, mediaID string) (*Result, error) {
	return s.Resolve(ctx, Request{MediaID: mediaID, Kind: KindMovie})
}

// ResolveSeries resolves a series at the series level (season and episode 0).
func (s *Service) ResolveSeries(ctx context.Context, mediaID string) (*Result, error) {
	return s.Resolve(ctx, Request{MediaID: mediaID, Kind: KindTV})
}

// ResolveEpisode resolves one episode of a series.
func (s *Service) ResolveEpisode(ctx context.Context, mediaID string, season, episode int) (*Result, error) {
	return s.Resolve(ctx, Request{MediaID: mediaID, Kind: KindTV, Season: season, Episode: episode})
}

// PruneCache drops cache entries that can no longer be served.
func (s *Service) PruneCache() int {
	removed := s.cache.Prune()
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("Pruned resolution cache")
	}
	return removed
}
