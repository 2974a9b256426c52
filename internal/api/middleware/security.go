package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets hardening headers on JSON responses. Requests matched
// by passthrough are left untouched so proxied asset headers reach the client
// as the CDN sent them.
func SecurityHeaders(passthrough func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if passthrough != nil && passthrough(c) {
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")

			// Resolutions carry short-lived signed URLs.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
