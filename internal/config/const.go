package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Debug returns true when FOOTY_DEBUG is set (e.g. FOOTY_DEBUG=1).
func Debug() bool {
	return os.Getenv("FOOTY_DEBUG") != ""
}

// envInt returns env value as int, or default if unset/invalid.
func envInt(name string, defaultVal int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// envDuration returns env value as duration, or default if unset/invalid.
func envDuration(name string, defaultVal time.Duration) time.Duration {
	if s := os.Getenv(name); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

// envString returns env value, or default if unset.
func envString(name, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(name)); s != "" {
		return s
	}
	return defaultVal
}

// Cache time-to-live policy per data set.
const (
	LadderTTL       = time.Hour
	CurrentRoundTTL = time.Hour
	PastGamesTTL    = 300 * 24 * time.Hour
	FutureGamesTTL  = 7 * 24 * time.Hour
)

// Cache keys in the persistent store.
const (
	LadderCacheKey       = "aflLadderData"
	PastGamesCacheKey    = "aflPastGamesData"
	FutureGamesCacheKey  = "aflFutureGamesData"
	CurrentRoundCacheKey = "aflCurrentRoundData"
	RoundsIndexCacheKey  = "aflRoundsIndex"
)

// Port returns the HTTP listen port. Env: PORT.
func Port() string {
	return envString("PORT", "8080")
}

// SquiggleURL returns the Squiggle API base URL. Env: FOOTY_SQUIGGLE_URL.
func SquiggleURL() string {
	return strings.TrimRight(envString("FOOTY_SQUIGGLE_URL", "https://api.squiggle.com.au"), "/")
}

// AFLAPIURL returns the AFL API base URL used for the current round. Env: FOOTY_AFL_API_URL.
func AFLAPIURL() string {
	return strings.TrimRight(envString("FOOTY_AFL_API_URL", "https://aflapi.afl.com.au"), "/")
}

// CompSeasonID returns the AFL API competition season id. Env: FOOTY_COMP_SEASON_ID.
func CompSeasonID() int {
	return envInt("FOOTY_COMP_SEASON_ID", 62)
}

// Season returns the Squiggle year filter. Env: FOOTY_SEASON.
func Season() int {
	return envInt("FOOTY_SEASON", time.Now().Year())
}

// UserAgent returns the outbound User-Agent header. Env: FOOTY_USER_AGENT.
func UserAgent() string {
	return envString("FOOTY_USER_AGENT", "footyhub/1.0")
}

// FetchTimeout returns the per-request timeout for outbound fetches. Env: FOOTY_FETCH_TIMEOUT.
func FetchTimeout() time.Duration {
	return envDuration("FOOTY_FETCH_TIMEOUT", 10*time.Second)
}

// ParallelFetch reports whether the four data sets are fetched behind a join. Env: FOOTY_PARALLEL_FETCH.
func ParallelFetch() bool {
	return os.Getenv("FOOTY_PARALLEL_FETCH") != ""
}

// LiveMode returns "slate" or "game". Env: FOOTY_LIVE_MODE.
func LiveMode() string {
	if envString("FOOTY_LIVE_MODE", "slate") == "game" {
		return "game"
	}
	return "slate"
}

// LivePreview reports whether the fake live-game preview source is used. Env: FOOTY_LIVE_PREVIEW.
func LivePreview() bool {
	return os.Getenv("FOOTY_LIVE_PREVIEW") != ""
}

// LiveMaxRetries returns the stream reconnect budget. Env: FOOTY_LIVE_MAX_RETRIES.
func LiveMaxRetries() int {
	return envInt("FOOTY_LIVE_MAX_RETRIES", 3)
}

// LiveRetryDelay returns the delay before a stream reconnect. Env: FOOTY_LIVE_RETRY_DELAY.
func LiveRetryDelay() time.Duration {
	return envDuration("FOOTY_LIVE_RETRY_DELAY", 2*time.Second)
}

// LiveRefresh returns the live-set poll interval in per-game mode. Env: FOOTY_LIVE_REFRESH.
func LiveRefresh() time.Duration {
	return envDuration("FOOTY_LIVE_REFRESH", time.Minute)
}

// RedisAddr returns the Redis address; empty selects the memory store. Env: FOOTY_REDIS_ADDR.
func RedisAddr() string {
	return envString("FOOTY_REDIS_ADDR", "")
}

// RedisPrefix returns the key prefix used in Redis. Env: FOOTY_REDIS_PREFIX.
func RedisPrefix() string {
	return envString("FOOTY_REDIS_PREFIX", "footy:")
}

// MemoryStoreSize returns the memory store capacity. Env: FOOTY_MEMORY_STORE_SIZE.
func MemoryStoreSize() int {
	return envInt("FOOTY_MEMORY_STORE_SIZE", 256)
}

// InboundRateLimitRequests returns requests per IP per window. Env: FOOTY_INBOUND_RATE_LIMIT.
func InboundRateLimitRequests() int {
	return envInt("FOOTY_INBOUND_RATE_LIMIT", 60)
}

// InboundRateLimitPer returns the rate limit window. Env: FOOTY_INBOUND_RATE_LIMIT_PER.
func InboundRateLimitPer() time.Duration {
	return envDuration("FOOTY_INBOUND_RATE_LIMIT_PER", time.Minute)
}

// InboundRetryAfterSec returns Retry-After header value on 429. Env: FOOTY_INBOUND_RETRY_AFTER.
func InboundRetryAfterSec() int {
	return envInt("FOOTY_INBOUND_RETRY_AFTER", 60)
}

// InboundBucketMaxStale returns eviction threshold for stale buckets. Env: FOOTY_INBOUND_BUCKET_MAX_STALE.
func InboundBucketMaxStale() time.Duration {
	return envDuration("FOOTY_INBOUND_BUCKET_MAX_STALE", 5*time.Minute)
}

// InboundBucketEvictThreshold returns bucket count above which eviction runs. Env: FOOTY_INBOUND_BUCKET_EVICT_THRESHOLD.
func InboundBucketEvictThreshold() int {
	return envInt("FOOTY_INBOUND_BUCKET_EVICT_THRESHOLD", 100)
}
