// Package middleware provides HTTP rate limiting for the validation service.
//
// RateLimitMiddleware keys callers by client IP and asks a Limiter whether
// another request is allowed. Two limiters are provided:
//
// RateLimiter: in-memory token bucket, one per process
//
//	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
//		RequestsPerWindow: 100,
//		WindowDuration:    time.Minute,
//		BurstSize:         10,
//	})
//	limiter.StartCleanup(ctx)
//
// DistributedRateLimiter: fixed window counter in Redis, shared by every
// instance
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, config, "protoguard:ratelimit")
//
// Both are wrapped the same way:
//
//	handler = middleware.NewRateLimitMiddleware(limiter, logger).Handler(handler)
//
// On limiter errors the middleware fails open unless SetFallbackEnabled(false)
// is called, in which case it answers 503.
package middleware
