// Package middleware holds the echo middleware for the hook endpoints.
package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/domain"
	"github.com/dukerupert/bifrost/internal/hook"
)

// HookAuth verifies the authority's HMAC signature over the raw body and
// marks the request context as an authenticated delivery. The body is
// restored so handlers can still bind it.
func HookAuth(auth hook.Authenticator, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			payload, err := io.ReadAll(req.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{
					"status":  "failure",
					"message": "Error reading request body",
				})
			}
			req.Body = io.NopCloser(bytes.NewReader(payload))

			if err := auth.Verify(payload, req.Header.Get(hook.SignatureHeader)); err != nil {
				logger.Warn().Err(err).Str("path", req.URL.Path).Msg("hook signature verification failed")
				return c.JSON(domain.ErrorStatus(err), map[string]string{
					"status":  "failure",
					"message": domain.ErrorMessage(err),
				})
			}

			ctx := hook.WithFromAuthority(req.Context())
			ctx = hook.WithTraceID(ctx, req.Header.Get(hook.TraceIDHeader))
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
