package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// MediaKind distinguishes movies from series.
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// Request identifies one resolution: a TMDB id plus, for series, an optional
// season and episode. Movies and series-level lookups use 0/0.
type Request struct {
	MediaID string
	Kind    MediaKind
	Season  int
	Episode int
}

// IsSeries reports whether the request targets a series.
func (r Request) IsSeries() bool {
	return r.Kind == KindTV
}

// Validate rejects malformed requests before any upstream call is made.
func (r Request) Validate() error {
	if r.MediaID == "" {
		return fmt.Errorf("%w: media id is required", ErrInvalidRequest)
	}
	if id, err := strconv.Atoi(r.MediaID); err != nil || id <= 0 || strconv.Itoa(id) != r.MediaID {
		return fmt.Errorf("%w: media id %q is not a positive number", ErrInvalidRequest, r.MediaID)
	}
	switch r.Kind {
	case KindMovie:
		if r.Season != 0 || r.Episode != 0 {
			return fmt.Errorf("%w: movies have no seasons or episodes", ErrInvalidRequest)
		}
	case KindTV:
		if r.Season < 0 || r.Episode < 0 {
			return fmt.Errorf("%w: season and episode must not be negative", ErrInvalidRequest)
		}
	default:
		return fmt.Errorf("%w: unknown media kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// CacheKey returns kind:mediaId:season:episode. The kind prefix keeps a movie
// and a series that share a numeric id apart.
func (r Request) CacheKey() string {
	return fmt.Sprintf("%s:%s:%d:%d", r.Kind, r.MediaID, r.Season, r.Episode)
}

func (r Request) tmdbType() tmdb.MediaType {
	if r.IsSeries() {
		return tmdb.MediaTypeTV
	}
	return tmdb.MediaTypeMovie
}

// Markers listed in Result.Missing.
const (
	MissingDetailPath   = "detailPath"
	MissingDownloadData = "downloadData"
)

// Result is the unit that is cached and returned to callers. Callers must
// treat it as read-only since cached results are shared.
type Result struct {
	Type         MediaKind       `json:"type"`
	Title        string          `json:"title"`
	Year         string          `json:"year"`
	SubjectID    string          `json:"subjectId"`
	DetailPath   *string         `json:"detailPath"`
	DetailsURL   string          `json:"detailsUrl"`
	Season       int             `json:"season,omitempty"`
	Episode      int             `json:"episode,omitempty"`
	HasResource  bool            `json:"hasResource"`
	DownloadData json.RawMessage `json:"downloadData"`
	Partial      bool            `json:"partial,omitempty"`
	Missing      []string        `json:"missing,omitempty"`
}

func (r *Result) markMissing(field string) {
	r.Partial = true
	r.Missing = append(r.Missing, field)
}

// hasResource reads the flag from either data.hasResource or a top-level hasResource.
func hasResource(descriptor json.RawMessage) bool {
	var envelope struct {
		HasResource *bool `json:"hasResource"`
		Data        *struct {
			HasResource *bool `json:"hasResource"`
		} `json:"data"`
	}
	if err := json.Unmarshal(descriptor, &envelope); err != nil {
		return false
	}
	if envelope.Data != nil && envelope.Data.HasResource != nil {
		return *envelope.Data.HasResource
	}
	if envelope.HasResource != nil {
		return *envelope.HasResource
	}
	return false
}
