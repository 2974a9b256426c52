package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	streamPrefix   = "/stream"
	subtitlePrefix = "/subtitle"
)

// setupProxies mounts byte-for-byte passthroughs to the catalog's media and
// subtitle hosts. The hosts reject requests without the catalog Referer.
func (s *Server) setupProxies() error {
	targets := []struct {
		prefix string
		target string
	}{
		{streamPrefix, s.cfg.Proxy.StreamTarget},
		{subtitlePrefix, s.cfg.Proxy.SubtitleTarget},
	}

	for _, t := range targets {
		if t.target == "" {
			continue
		}
		mw, err := s.assetProxy(t.prefix, t.target)
		if err != nil {
			return err
		}
		s.echo.Group(t.prefix, mw...)
		s.logger.Info().Str("prefix", t.prefix).Str("target", t.target).Msg("Asset proxy enabled")
	}
	return nil
}

func (s *Server) assetProxy(prefix, target string) ([]echo.MiddlewareFunc, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy target %q for %s", target, prefix)
	}

	referer := s.cfg.Proxy.Referer
	setHeaders := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			req.Host = u.Host
			req.Header.Del(echo.HeaderOrigin)
			req.Header.Del("Cookie")
			if referer != "" {
				req.Header.Set("Referer", referer)
			}
			return next(c)
		}
	}

	proxy := middleware.ProxyWithConfig(middleware.ProxyConfig{
		Balancer: middleware.NewRandomBalancer([]*middleware.ProxyTarget{{URL: u}}),
		Rewrite: map[string]string{
			prefix + "/*": "/$1",
		},
		ModifyResponse: func(resp *http.Response) error {
			// CORS for the browser is set by our own middleware.
			resp.Header.Del("Access-Control-Allow-Origin")
			return nil
		},
	})

	return []echo.MiddlewareFunc{setHeaders, proxy}, nil
}
