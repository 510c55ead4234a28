package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheHeader reports HIT or MISS for cacheable requests
const CacheHeader = "X-Cache"

// noCacheKey marks a request whose response must not be stored
const noCacheKey = "noCache"

// SkipCache keeps the current response out of the cache, e.g. for results
// computed from fallback data
func SkipCache(c *gin.Context) {
	c.Set(noCacheKey, true)
}

// CacheConfig holds configuration for the cache middleware
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	PrefixKey string
}

// RedisCache caches successful GET responses in Redis for cfg.TTL.
// A nil client or disabled config makes it a pass-through.
func RedisCache(redisClient *redis.Client, cfg CacheConfig, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || !cfg.Enabled || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := CacheKey(cfg.PrefixKey, c.Request.URL.Path, c.Request.URL.RawQuery)

		cached, err := redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			logger.Debug("Cache hit", zap.String("path", c.Request.URL.Path), zap.String("cache_key", cacheKey))
			c.Writer.Header().Set(CacheHeader, "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if err != redis.Nil {
			logger.Warn("Cache read failed", zap.Error(err), zap.String("cache_key", cacheKey))
		}

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer
		c.Writer.Header().Set(CacheHeader, "MISS")

		c.Next()

		if c.Writer.Status() != http.StatusOK {
			return
		}
		if c.GetBool(noCacheKey) {
			logger.Debug("Cache skipped", zap.String("path", c.Request.URL.Path), zap.String("cache_key", cacheKey))
			return
		}

		if err := redisClient.Set(ctx, cacheKey, writer.body.Bytes(), cfg.TTL).Err(); err != nil {
			logger.Error("Failed to set cache", zap.Error(err), zap.String("cache_key", cacheKey))
			return
		}
		logger.Debug("Cache set",
			zap.String("path", c.Request.URL.Path),
			zap.String("cache_key", cacheKey),
			zap.Duration("ttl", cfg.TTL))
	}
}

// responseWriter captures the response body for caching
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write captures the response for caching
func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// WriteString captures string writes, which gin uses for some renderers
func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheKey derives the Redis key for a path and raw query
func CacheKey(prefix, path, rawQuery string) string {
	hash := sha256.New()
	io.WriteString(hash, path)
	if rawQuery != "" {
		io.WriteString(hash, "?"+rawQuery)
	}
	return prefix + ":" + hex.EncodeToString(hash.Sum(nil))
}
