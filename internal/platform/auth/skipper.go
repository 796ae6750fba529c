package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass session loading entirely: infrastructure endpoints
// that must answer without cookies.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// SessionSkipper returns true for requests whose route should not load a
// session. Pass it as SessionConfig.Skipper.
func SessionSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is a public infrastructure endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
