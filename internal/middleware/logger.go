package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dukerupert/bifrost/internal/hook"
)

// RequestLogger logs one structured line per request, including the
// authority's trace ID when present.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			event := logger.Info()
			if c.Response().Status >= 500 {
				event = logger.Error()
			} else if c.Response().Status >= 400 {
				event = logger.Warn()
			}

			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Str("trace_id", hook.TraceID(c.Request().Context())).
				Msg("request")

			return err
		}
	}
}
