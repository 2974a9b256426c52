package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slipstream/mediabridge/internal/fetch"
	"github.com/slipstream/mediabridge/internal/metadata/mock"
	"github.com/slipstream/mediabridge/internal/metadata/tmdb"
)

func setupTestHandlers(t *testing.T) (*catalogStub, *Handlers) {
	stub, server := newCatalogStub(t)
	resolver := newTestResolver(server, mock.NewTMDBClient())
	service := NewServiceWithResolver(resolver, NewCache(DefaultCacheConfig(), zerolog.Nop()), zerolog.Nop())
	return stub, NewHandlers(service)
}

func newContext(method, target string, names []string, values []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(names) > 0 {
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

func TestHandlers_GetMovie(t *testing.T) {
	_, handlers := setupTestHandlers(t)
	c, rec := newContext(http.MethodGet, "/movie/603", []string{"id"}, []string{"603"})

	if err := handlers.GetMovie(c); err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Title != "The Matrix" || result.Year != "1999" {
		t.Errorf("result = %q (%q), want The Matrix (1999)", result.Title, result.Year)
	}
	if result.SubjectID != matrixID {
		t.Errorf("SubjectID = %q, want %q", result.SubjectID, matrixID)
	}
	if !result.HasResource {
		t.Error("HasResource = false, want true")
	}
}

func TestHandlers_GetEpisode(t *testing.T) {
	stub, handlers := setupTestHandlers(t)
	stub.payload = func(string) string {
		return `["breaking-bad-Zx1",["4444444444444444444","2008-01-20","Breaking Bad"]]`
	}
	c, rec := newContext(http.MethodGet, "/tv/1396/2/5",
		[]string{"id", "season", "episode"}, []string{"1396", "2", "5"})

	if err := handlers.GetEpisode(c); err != nil {
		t.Fatalf("GetEpisode() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	downloads := stub.downloadCalls()
	if len(downloads) != 1 || downloads[0].Get("se") != "2" || downloads[0].Get("ep") != "5" {
		t.Errorf("download calls = %v", downloads)
	}
}

func TestHandlers_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		setup  func(*catalogStub)
		status int
	}{
		{"invalid id", "abc", nil, http.StatusBadRequest},
		{"unknown id", "424242", nil, http.StatusNotFound},
		{
			"no match",
			"603",
			func(s *catalogStub) { s.payload = func(string) string { return emptyPayload } },
			http.StatusNotFound,
		},
		{
			"catalog down",
			"603",
			func(s *catalogStub) { s.searchStatus = http.StatusServiceUnavailable },
			http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub, handlers := setupTestHandlers(t)
			if tt.setup != nil {
				tt.setup(stub)
			}
			c, _ := newContext(http.MethodGet, "/movie/"+tt.id, []string{"id"}, []string{tt.id})

			err := handlers.GetMovie(c)
			var he *echo.HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("GetMovie() error = %v, want *echo.HTTPError", err)
			}
			if he.Code != tt.status {
				t.Errorf("status = %d, want %d", he.Code, tt.status)
			}
		})
	}
}

func TestHandlers_UpstreamErrorDetail(t *testing.T) {
	stub, handlers := setupTestHandlers(t)
	stub.searchStatus = http.StatusServiceUnavailable
	c, _ := newContext(http.MethodGet, "/movie/603", []string{"id"}, []string{"603"})

	err := handlers.GetMovie(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("GetMovie() error = %v", err)
	}
	detail, ok := he.Message.(map[string]any)
	if !ok {
		t.Fatalf("message = %#v, want detail map", he.Message)
	}
	if detail["op"] != "catalog search" {
		t.Errorf("op = %v", detail["op"])
	}
	if detail["upstreamStatus"] != http.StatusServiceUnavailable {
		t.Errorf("upstreamStatus = %v", detail["upstreamStatus"])
	}
}

func TestHandlers_GetEpisodeInvalidParams(t *testing.T) {
	_, handlers := setupTestHandlers(t)
	c, _ := newContext(http.MethodGet, "/tv/1396/x/5",
		[]string{"id", "season", "episode"}, []string{"1396", "x", "5"})

	err := handlers.GetEpisode(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("GetEpisode() error = %v, want 400", err)
	}
}

func TestHandlers_CacheRoutes(t *testing.T) {
	_, handlers := setupTestHandlers(t)

	c, _ := newContext(http.MethodGet, "/movie/603", []string{"id"}, []string{"603"})
	if err := handlers.GetMovie(c); err != nil {
		t.Fatalf("GetMovie() error = %v", err)
	}

	c, rec := newContext(http.MethodGet, "/cache/stats", nil, nil)
	if err := handlers.GetCacheStats(c); err != nil {
		t.Fatalf("GetCacheStats() error = %v", err)
	}
	var stats CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Entries != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v", stats)
	}

	c, _ = newContext(http.MethodDelete, "/cache?key=movie:999:0:0", nil, nil)
	err := handlers.ClearCache(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("ClearCache(unknown key) error = %v, want 404", err)
	}

	c, rec = newContext(http.MethodDelete, "/cache?key=movie:603:0:0", nil, nil)
	if err := handlers.ClearCache(c); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if rec.Body.String() != "{\"removed\":1}\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("x: %w", ErrNotFound), http.StatusNotFound},
		{newUpstreamError("catalog search", &fetch.StatusError{StatusCode: 429}), http.StatusBadGateway},
		{tmdb.ErrAPIKeyMissing, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
