package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route patterns that bypass authentication: health checks,
// metrics and CDS Hooks discovery.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/metrics":      true,
	"/cds-services": true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication. Pass it as JWTConfig.Skipper.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given route is public.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
