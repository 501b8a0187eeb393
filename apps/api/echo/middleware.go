package echoapi

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	metricsvc "github.com/toure-cloud/institutdeveloppement/services/metrics"
	ratelimitsvc "github.com/toure-cloud/institutdeveloppement/services/ratelimit"
)

// adminMiddleware lets staff through; ownerOnly restricts to superusers.
func adminMiddleware(ownerOnly bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin {
				return errStaffOnly
			}
			if ownerOnly && !claims.IsOwner {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func candidateMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsCandidate {
			return errCandidatesOnly
		}
		return next(ctx)
	}
}

// rateLimitMiddleware counts the requests of each client IP against limiter.
func rateLimitMiddleware(limiter ratelimitsvc.Limiter, endpoint string, metrics *metricsvc.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil {
			return next
		}
		return func(ctx echo.Context) error {
			res, err := limiter.Allow(ctx.Request().Context(), ctx.RealIP())
			if err != nil {
				// fail open
				ctx.Logger().Errorf("%+v", errors.Wrap(err, "rate limiting "+endpoint))
				return next(ctx)
			}
			ctx.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				if metrics != nil {
					metrics.IncrementRateLimited(endpoint)
				}
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				ctx.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// noStore marks responses carrying personal data as not cacheable.
func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Response().Header().Set("Cache-Control", "no-store")
		return next(ctx)
	}
}
