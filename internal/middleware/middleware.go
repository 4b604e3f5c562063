package middleware

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	constants "github.com/CodeAndHammer/learngames/internal/constants"
	models "github.com/CodeAndHammer/learngames/internal/models"
)

const (
	limiterSoftCap      = 10000
	limiterEmergencyCap = 50000
)

const csp = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self'; connect-src 'self'; object-src 'none'; base-uri 'self'; form-action 'self'; frame-ancestors 'none';"

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		}
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), constants.RequestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(app *models.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqID, _ := c.Request.Context().Value(constants.RequestIDKey).(string)
		app.Log.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", reqID,
		)
	}
}

func getLimiter(app *models.App, key string) *rate.Limiter {
	now := app.Clock.Now()

	app.LimiterMutex.RLock()
	entry, ok := app.LimiterMap[key]
	app.LimiterMutex.RUnlock()
	if ok {
		app.LimiterMutex.Lock()
		entry.LastAccess = now
		app.LimiterMutex.Unlock()
		return entry.Limiter
	}

	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	if entry, ok = app.LimiterMap[key]; ok {
		entry.LastAccess = now
		return entry.Limiter
	}

	if key == "" {
		app.Log.Warn("Rate limiter key is empty")
	}
	rps := app.Config.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	burst := app.Config.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), burst)
	app.LimiterMap[key] = &models.RateLimiterEntry{Limiter: lim, LastAccess: now}
	return lim
}

// RateLimit rejects clients that exceed the per-IP token bucket.
func RateLimit(app *models.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !getLimiter(app, c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   constants.ErrorCodeRateLimited,
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

// CSRF issues the double-submit cookie when the client has none.
func CSRF(app *models.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(constants.CSRFCookieName)
		if err != nil || len(token) < 8 {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err == nil {
				token = fmt.Sprintf("%x", b)
				c.SetSameSite(http.SameSiteLaxMode)
				c.SetCookie(constants.CSRFCookieName, token, int(app.Config.CookieMaxAge.Seconds()), "/", "", app.Config.IsProduction, false)
			}
		}
		c.Set(constants.CSRFCookieName, token)
		c.Next()
	}
}

// ValidateCSRF requires unsafe methods to echo the cookie in the header.
func ValidateCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
			cookie, _ := c.Cookie(constants.CSRFCookieName)
			header := c.GetHeader(constants.CSRFHeaderName)
			if header == "" || cookie == "" || header != cookie {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   constants.ErrorCodeInvalidCSRF,
					"message": "invalid csrf token",
				})
				return
			}
		}
		c.Next()
	}
}

// CleanupStaleRateLimiters drops limiters idle longer than RateLimiterTTL.
// Past limiterEmergencyCap entries the oldest half is dropped as well.
func CleanupStaleRateLimiters(app *models.App) int {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := app.Clock.Now().Add(-app.Config.RateLimiterTTL)
	removedCount := 0

	for key, entry := range app.LimiterMap {
		if entry.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if len(app.LimiterMap) > limiterSoftCap {
		app.Log.Info("Rate limiter map too large", "entries", len(app.LimiterMap))

		if len(app.LimiterMap) > limiterEmergencyCap {
			type limiterInfo struct {
				key        string
				lastAccess time.Time
			}

			limiters := make([]limiterInfo, 0, len(app.LimiterMap))
			for key, entry := range app.LimiterMap {
				limiters = append(limiters, limiterInfo{key: key, lastAccess: entry.LastAccess})
			}

			sort.Slice(limiters, func(i, j int) bool {
				return limiters[i].lastAccess.Before(limiters[j].lastAccess)
			})

			entriesToRemove := len(limiters) / 2
			for i := 0; i < entriesToRemove; i++ {
				delete(app.LimiterMap, limiters[i].key)
				removedCount++
			}

			app.Log.Warn("Removed oldest rate limiters", "count", entriesToRemove)
		}
	}

	if removedCount > 0 {
		app.Log.Info("Cleaned up stale rate limiters", "count", removedCount)
	}
	return removedCount
}
