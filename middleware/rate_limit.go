package middleware

import (
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// WSRateLimiter caps page socket upgrades per user, or per client IP before
// authentication, within window. The counter is released when the upgrade
// does not happen.
func WSRateLimiter(rdb redis.UniversalClient, maxConnPerClient int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.GetString(string(UserIDKey))
		if client == "" {
			client = c.ClientIP()
		}
		key := fmt.Sprintf("planner:ws_conn:%s", client)
		ctx := c.Request.Context()

		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// Connections are still admitted when Redis is unavailable
			logger.GetLogger().Warnw("WebSocket rate limit check failed", "client", client, "error", err)
			c.Next()
			return
		}

		if incr.Val() > int64(maxConnPerClient) {
			rdb.Decr(ctx, key)
			_ = c.Error(apperrors.RateLimitExceeded("Too many WebSocket connections", int(window.Seconds())))
			c.Abort()
			return
		}

		defer func() {
			if c.Writer.Status() != http.StatusSwitchingProtocols {
				rdb.Decr(ctx, key)
			}
		}()

		c.Next()
	}
}
