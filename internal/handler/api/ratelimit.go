package api

import (
	"net/http"

	"CandleHist/internal/service/ratelimit"
	xhttp "CandleHist/pkg/http"

	"github.com/labstack/echo/v4"
)

// RateLimit limits requests per client IP with a token bucket.
func RateLimit(l *ratelimit.Limiter, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP(), capacity, refillPerSec) {
				return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
