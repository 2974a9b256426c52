package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/fetch"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("title not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// Client is a TMDB API client.
type Client struct {
	getter fetch.Getter
	config config.TMDBConfig
	logger zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, getter fetch.Getter, logger zerolog.Logger) *Client {
	return &Client{
		getter: getter,
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// GetDetails returns the canonical title and release year for a movie or series.
func (c *Client) GetDetails(ctx context.Context, mediaType MediaType, id int) (*Details, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/%s/%d", c.baseURL(), mediaType, id)

	var result Details
	switch mediaType {
	case MediaTypeMovie:
		var details MovieDetails
		if err := c.doRequest(ctx, endpoint, c.params(), &details); err != nil {
			return nil, err
		}
		result = Details{
			ID:            details.ID,
			Type:          MediaTypeMovie,
			Title:         details.Title,
			OriginalTitle: details.OriginalTitle,
			Year:          yearOf(details.ReleaseDate),
			ImdbID:        details.ImdbID,
		}
	case MediaTypeTV:
		var details TVDetails
		if err := c.doRequest(ctx, endpoint, c.params(), &details); err != nil {
			return nil, err
		}
		result = Details{
			ID:            details.ID,
			Type:          MediaTypeTV,
			Title:         details.Name,
			OriginalTitle: details.OriginalName,
			Year:          yearOf(details.FirstAirDate),
		}
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	if result.Title == "" {
		return nil, fmt.Errorf("%s %d: %w", mediaType, id, ErrNotFound)
	}

	c.logger.Debug().
		Int("id", id).
		Str("type", string(mediaType)).
		Str("title", result.Title).
		Str("year", result.Year).
		Msg("Got title details")

	return &result, nil
}

// GetAlternativeTitles returns the alternative titles TMDB knows for a movie or series.
func (c *Client) GetAlternativeTitles(ctx context.Context, mediaType MediaType, id int) ([]AlternativeTitle, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("%s/%s/%d/alternative_titles", c.baseURL(), mediaType, id)

	var response AlternativeTitlesResponse
	if err := c.doRequest(ctx, endpoint, c.params(), &response); err != nil {
		return nil, err
	}

	titles := response.Titles
	if len(titles) == 0 {
		titles = response.Results
	}

	c.logger.Debug().
		Int("id", id).
		Str("type", string(mediaType)).
		Int("count", len(titles)).
		Msg("Got alternative titles")

	return titles, nil
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}
	return params
}

// doRequest performs a GET through the retrying executor and decodes the JSON body.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	header := http.Header{}
	header.Set("Accept", "application/json")

	resp, err := c.getter.Get(ctx, reqURL, header)
	if err != nil {
		var statusErr *fetch.StatusError
		if !errors.As(err, &statusErr) {
			c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
			return fmt.Errorf("HTTP request failed: %w", err)
		}

		var errResp ErrorResponse
		if json.Unmarshal([]byte(statusErr.Body), &errResp) == nil && errResp.StatusMessage != "" {
			c.logger.Error().
				Int("status", statusErr.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		default:
			return fmt.Errorf("%w: %w", ErrAPIError, err)
		}
	}

	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func yearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
