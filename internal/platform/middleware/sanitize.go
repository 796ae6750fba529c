package middleware

import (
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

const maxHeaderValueSize = 8192

var (
	// Logged only; queries are parameterized.
	sqlPattern = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1)`)

	scriptPattern = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize rejects requests with path traversal, null bytes, header
// injection, oversized headers or script payloads in query parameters.
// Rejections are apperr.Invalid and never echo the offending value.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if reason := inspect(c, logger); reason != "" {
				logger.Warn().
					Str("reason", reason).
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Msg("request rejected by sanitizer")
				return apperr.Invalid(reason)
			}
			return next(c)
		}
	}
}

func inspect(c echo.Context, logger zerolog.Logger) string {
	req := c.Request()
	path := req.URL.Path
	rawPath := req.URL.EscapedPath()

	if hasPathTraversal(path) || hasPathTraversal(rawPath) {
		return "path traversal detected"
	}
	if hasNullByte(path) || hasNullByte(rawPath) {
		return "null byte in path"
	}

	for name, values := range req.Header {
		for _, v := range values {
			if len(v) > maxHeaderValueSize {
				return "header too large: " + name
			}
			if strings.ContainsAny(v, "\r\n") {
				return "header injection detected: " + name
			}
		}
	}

	for key, values := range req.URL.Query() {
		if hasNullByte(key) || scriptPattern.MatchString(key) {
			return "invalid query parameter"
		}
		for _, v := range values {
			if hasNullByte(v) {
				return "null byte in query parameter"
			}
			if scriptPattern.MatchString(v) {
				return "script in query parameter"
			}
			if sqlPattern.MatchString(v) {
				logger.Warn().Str("param", key).Str("path", path).Msg("sql-like pattern in query parameter")
			}
		}
	}
	return ""
}

func hasPathTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") || strings.Contains(lower, "%2e%2e") || strings.Contains(lower, "%252e")
}

func hasNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}
