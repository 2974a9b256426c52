package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slipstream/mediabridge/internal/database"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// TMDBClient defines the identifier provider operations the resolver needs.
type TMDBClient interface {
	IsConfigured() bool
	GetDetails(ctx context.Context, mediaType tmdb.MediaType, id int) (*tmdb.Details, error)
	GetAlternativeTitles(ctx context.Context, mediaType tmdb.MediaType, id int) ([]tmdb.AlternativeTitle, error)
}

// CatalogClient defines the catalog site operations the resolver needs.
type CatalogClient interface {
	Search(ctx context.Context, keyword string) (string, error)
	Download(ctx context.Context, subjectID string, season, episode int, referer string) (json.RawMessage, error)
	DetailsURL(detailPath, subjectID string) string
	FallbackDetailsURL(subjectID string) string
}

// ResolveFunc produces a fresh result for one cache key.
type ResolveFunc func(ctx context.Context) (*Result, error)

// HealthReporter receives the upstream outcome of each uncached resolution.
type HealthReporter interface {
	SetError(id, message string)
	SetWarning(id, message string)
	ClearStatus(id string)
}

// CacheStore persists resolutions so a restart starts with a warm cache.
type CacheStore interface {
	LoadCache(ctx context.Context, notBefore time.Time) ([]database.CacheEntry, error)
	SaveCacheEntry(ctx context.Context, e database.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	DeleteCacheEntriesBefore(ctx context.Context, t time.Time) (int64, error)
	ClearCache(ctx context.Context) (int64, error)
}
