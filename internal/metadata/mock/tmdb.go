// Package mock provides an in-memory identifier provider for tests and offline runs.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

// TMDBClient is a mock implementation of the TMDB client.
type TMDBClient struct {
	mu           sync.Mutex
	details      map[string]tmdb.Details
	alternatives map[string][]tmdb.AlternativeTitle
	calls        map[string]int
	err          error
}

// NewTMDBClient creates a mock TMDB client preloaded with a few well-known titles.
func NewTMDBClient() *TMDBClient {
	c := &TMDBClient{
		details:      make(map[string]tmdb.Details),
		alternatives: make(map[string][]tmdb.AlternativeTitle),
		calls:        make(map[string]int),
	}
	for _, d := range mockTitles {
		c.AddTitle(d)
	}
	return c
}

var mockTitles = []tmdb.Details{
	{ID: 603, Type: tmdb.MediaTypeMovie, Title: "The Matrix", Year: "1999", ImdbID: "tt0133093"},
	{ID: 129, Type: tmdb.MediaTypeMovie, Title: "Spirited Away", OriginalTitle: "千と千尋の神隠し", Year: "2001"},
	{ID: 1396, Type: tmdb.MediaTypeTV, Title: "Breaking Bad", Year: "2008"},
}

func key(mediaType tmdb.MediaType, id int) string {
	return fmt.Sprintf("%s:%d", mediaType, id)
}

// AddTitle registers or replaces a title.
func (c *TMDBClient) AddTitle(d tmdb.Details) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[key(d.Type, d.ID)] = d
}

// AddAlternativeTitles registers alternative titles for a title.
func (c *TMDBClient) AddAlternativeTitles(mediaType tmdb.MediaType, id int, titles ...tmdb.AlternativeTitle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alternatives[key(mediaType, id)] = append(c.alternatives[key(mediaType, id)], titles...)
}

// FailWith makes every call return err until it is cleared with nil.
func (c *TMDBClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls returns how many detail lookups were made for a title.
func (c *TMDBClient) Calls(mediaType tmdb.MediaType, id int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key(mediaType, id)]
}

func (c *TMDBClient) Name() string {
	return "tmdb-mock"
}

func (c *TMDBClient) IsConfigured() bool {
	return true
}

func (c *TMDBClient) GetDetails(ctx context.Context, mediaType tmdb.MediaType, id int) (*tmdb.Details, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[key(mediaType, id)]++
	if c.err != nil {
		return nil, c.err
	}
	d, ok := c.details[key(mediaType, id)]
	if !ok {
		return nil, tmdb.ErrNotFound
	}
	return &d, nil
}

func (c *TMDBClient) GetAlternativeTitles(ctx context.Context, mediaType tmdb.MediaType, id int) ([]tmdb.AlternativeTitle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	return append([]tmdb.AlternativeTitle(nil), c.alternatives[key(mediaType, id)]...), nil
}
