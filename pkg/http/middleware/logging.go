package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"SignalRelay/pkg/logger"
)

// RequestLogging logs HTTP requests. 5xx responses log at error level,
// the rest at debug so health probes stay quiet.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeOf(c)),
				logger.String("remote", c.RealIP()),
				logger.Int("status", status),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if status >= 500 {
				if err != nil {
					fields = append(fields, logger.Error(err))
				}
				l.Error("http request failed", fields...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return c.Request().URL.Path
}
