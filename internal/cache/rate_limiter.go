// internal/cache/rate_limiter.go
package cache

import (
	"context"
	"strconv"
	"time"

	"custody-service/pkg/apperr"

	"go.uber.org/zap"
)

// QuoteLimiter caps quotes per account per fixed window.
type QuoteLimiter struct {
	cache  *Cache
	window time.Duration
	max    int
}

func NewQuoteLimiter(cache *Cache, window time.Duration, max int) *QuoteLimiter {
	return &QuoteLimiter{cache: cache, window: window, max: max}
}

func (l *QuoteLimiter) Allow(ctx context.Context, accountID int64) error {
	if l == nil || l.max <= 0 {
		return nil
	}

	cnt, err := l.cache.IncrWithExpire(ctx, "quote_rate", strconv.FormatInt(accountID, 10), l.window)
	if err != nil {
		// limiter outage should not block quoting
		l.cache.logger.Warn("quote rate limiter unavailable",
			zap.Int64("account_id", accountID),
			zap.Error(err))
		return nil
	}

	if int(cnt) > l.max {
		return apperr.Newf(apperr.CodeRateLimited, "cache.QuoteLimiter",
			"too many quotes; try again in %d seconds", int(l.window.Seconds()))
	}
	return nil
}
