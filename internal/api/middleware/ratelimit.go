package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/metrics"
	"github.com/chamberlink/chamberlink/internal/store"
)

const (
	rateLimitPerWindow = 120
	rateLimitWindow    = time.Minute
)

// RateLimiter throttles callers by client IP using redis counters. With no
// redis configured (single-instance development) it passes everything
// through.
type RateLimiter struct {
	redis     *store.RedisStore
	logger    zerolog.Logger
	whitelist []*net.IPNet
}

// NewRateLimiter creates a limiter. whitelist entries are IPs or CIDRs
// exempt from throttling.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger, whitelist []string) *RateLimiter {
	rl := &RateLimiter{redis: redis, logger: logger}
	for _, entry := range whitelist {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			rl.whitelist = append(rl.whitelist, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			rl.whitelist = append(rl.whitelist, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return rl
}

func (rl *RateLimiter) whitelisted(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, network := range rl.whitelist {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware enforces the per-IP limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.whitelisted(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}

		caller := r.RemoteAddr
		if host, _, err := net.SplitHostPort(caller); err == nil {
			caller = host
		}

		allowed, err := rl.redis.CheckRateLimit(r.Context(), caller, rateLimitPerWindow)
		if err != nil {
			// Redis trouble should not take requests down with it.
			rl.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			w.Header().Set("Retry-After", "60")
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := rl.redis.IncrementRateLimit(r.Context(), caller, rateLimitWindow); err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit increment failed")
		}

		next.ServeHTTP(w, r)
	})
}
