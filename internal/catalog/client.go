package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/config"
	"github.com/slipstream/mediabridge/internal/fetch"
)

// ErrInvalidDescriptor is returned when the download endpoint answers with
// something that is not JSON.
var ErrInvalidDescriptor = errors.New("download descriptor is not valid JSON")

// Subject is a resolved catalog entry. An empty DetailPath means the search
// markup did not expose one and DetailsURL is the id-only fallback.
type Subject struct {
	SubjectID  string
	UsedTitle  string
	DetailPath string
	DetailsURL string
}

// Client talks to the catalog's search page and download endpoint.
type Client struct {
	getter fetch.Getter
	policy fetch.Policy
	config config.CatalogConfig
	logger zerolog.Logger
}

// NewClient creates a new catalog client.
func NewClient(cfg config.CatalogConfig, getter fetch.Getter, policy fetch.Policy, logger zerolog.Logger) *Client {
	return &Client{
		getter: getter,
		policy: policy,
		config: cfg,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// BaseURL returns the catalog origin without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// SearchURL builds the search page URL for keyword.
func (c *Client) SearchURL(keyword string) string {
	params := url.Values{}
	params.Set("keyword", keyword)
	return fmt.Sprintf("%s%s?%s", c.BaseURL(), c.config.SearchPath, params.Encode())
}

// DownloadURL builds the download descriptor URL.
func (c *Client) DownloadURL(subjectID string, season, episode int) string {
	params := url.Values{}
	params.Set("subjectId", subjectID)
	params.Set("se", strconv.Itoa(season))
	params.Set("ep", strconv.Itoa(episode))
	return fmt.Sprintf("%s%s?%s", c.BaseURL(), c.config.DownloadPath, params.Encode())
}

// DetailsURL builds the canonical details page URL for a resolved detail path.
func (c *Client) DetailsURL(detailPath, subjectID string) string {
	return fmt.Sprintf("%s%s%s?id=%s", c.BaseURL(), c.config.DetailsPathPrefix, detailPath, url.QueryEscape(subjectID))
}

// FallbackDetailsURL builds a details URL keyed only by subject id.
func (c *Client) FallbackDetailsURL(subjectID string) string {
	return fmt.Sprintf("%s%s?id=%s", c.BaseURL(), c.config.FallbackDetailsPath, url.QueryEscape(subjectID))
}

// Search fetches the raw search page for keyword.
func (c *Client) Search(ctx context.Context, keyword string) (string, error) {
	reqURL := c.SearchURL(keyword)

	header := http.Header{}
	header.Set("User-Agent", c.config.UserAgent)
	header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := c.getter.GetWithPolicy(ctx, reqURL, header, c.policy.WithTimeout(c.config.SearchTimeout))
	if err != nil {
		return "", fmt.Errorf("catalog search %q: %w", keyword, err)
	}

	c.logger.Debug().
		Str("keyword", keyword).
		Int("bytes", len(resp.Body)).
		Msg("Catalog search completed")

	return string(resp.Body), nil
}

// Download fetches the download descriptor for a subject. The endpoint checks
// the referer, so it must be the subject's details page.
func (c *Client) Download(ctx context.Context, subjectID string, season, episode int, referer string) (json.RawMessage, error) {
	reqURL := c.DownloadURL(subjectID, season, episode)

	resp, err := c.getter.GetWithPolicy(ctx, reqURL, c.DownloadHeaders(referer), c.policy.WithTimeout(c.config.DownloadTimeout))
	if err != nil {
		return nil, fmt.Errorf("catalog download %s: %w", subjectID, err)
	}

	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("catalog download %s: %w", subjectID, ErrInvalidDescriptor)
	}

	c.logger.Debug().
		Str("subjectId", subjectID).
		Int("season", season).
		Int("episode", episode).
		Msg("Got download descriptor")

	return json.RawMessage(resp.Body), nil
}

// DownloadHeaders returns the browser-like headers the download endpoint expects.
func (c *Client) DownloadHeaders(referer string) http.Header {
	if referer == "" {
		referer = c.BaseURL() + "/"
	}
	clientInfo, _ := json.Marshal(map[string]string{"timezone": c.config.ClientTimezone})

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("Referer", referer)
	header.Set("Origin", c.BaseURL())
	header.Set("User-Agent", c.config.UserAgent)
	header.Set("X-Client-Info", string(clientInfo))
	header.Set("X-Source", "h5")
	header.Set("Accept-Language", c.config.AcceptLanguage)
	return header
}
