package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crowdfund-server/internal/clients/redis"
	"crowdfund-server/internal/observability"

	redislib "github.com/redis/go-redis/v9"
)

// Result represents the outcome of a rate limit check
type Result struct {
	Allowed      bool
	Limit        int
	Remaining    int
	ResetAt      time.Time
	RetryAfterMs int
}

// Service limits how often a single user can start checkouts. It uses a
// sliding one-minute window backed by a Redis sorted set per user.
type Service struct {
	redis  *redis.Client
	limit  int
	logger *observability.Logger
}

// NewService creates a new rate limiting service
func NewService(redis *redis.Client, limitPerMinute int, logger *observability.Logger) *Service {
	if limitPerMinute <= 0 {
		limitPerMinute = 10
	}
	return &Service{
		redis:  redis,
		limit:  limitPerMinute,
		logger: logger,
	}
}

// Check records a request for the user and reports whether it is allowed.
// When Redis is unreachable the request is allowed; payments must not fail
// closed on a cache outage.
func (s *Service) Check(ctx context.Context, userID string) (Result, error) {
	client := s.redis.GetClient()
	if client == nil {
		return s.allowAll(), nil
	}

	key := fmt.Sprintf("rl:checkout:%s", userID)
	now := time.Now()
	windowStartMs := now.Add(-1 * time.Minute).UnixMilli()

	if err := client.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStartMs, 10)).Err(); err != nil {
		s.logger.WarnWithError(ctx, "rate limit window cleanup failed, allowing request", err)
		return s.allowAll(), nil
	}

	count, err := client.ZCard(ctx, key).Result()
	if err != nil {
		s.logger.WarnWithError(ctx, "rate limit count failed, allowing request", err)
		return s.allowAll(), nil
	}

	if int(count) >= s.limit {
		oldest, err := client.ZRange(ctx, key, 0, 0).Result()
		resetAt := now.Add(time.Minute)
		if err == nil && len(oldest) > 0 {
			if oldestTs, parseErr := strconv.ParseInt(oldest[0], 10, 64); parseErr == nil {
				resetAt = time.UnixMilli(oldestTs).Add(time.Minute)
			}
		}
		retryAfter := time.Until(resetAt)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Result{
			Allowed:      false,
			Limit:        s.limit,
			Remaining:    0,
			ResetAt:      resetAt,
			RetryAfterMs: int(retryAfter.Milliseconds()),
		}, nil
	}

	nowMs := now.UnixMilli()
	if err := client.ZAdd(ctx, key, redislib.Z{
		Score:  float64(nowMs),
		Member: strconv.FormatInt(nowMs, 10),
	}).Err(); err != nil {
		s.logger.WarnWithError(ctx, "rate limit record failed, allowing request", err)
		return s.allowAll(), nil
	}
	client.Expire(ctx, key, 2*time.Minute)

	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - int(count) - 1,
		ResetAt:   now.Add(time.Minute),
	}, nil
}

func (s *Service) allowAll() Result {
	return Result{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit,
		ResetAt:   time.Now().Add(time.Minute),
	}
}
