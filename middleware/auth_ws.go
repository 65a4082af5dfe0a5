package middleware

import (
	"net/http"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/internal/auth"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/gin-gonic/gin"
)

// WSSocketTokenAuth admits a browser to the page socket only with a socket
// token issued for the logged-in user (see GET /api/ws-token). The token is
// read from the "token" query parameter or the Sec-WebSocket-Protocol header.
func WSSocketTokenAuth(secret string, currentUser func() *types.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.GetLogger()
		startTime := time.Now()

		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString = c.GetHeader("Sec-WebSocket-Protocol")
		}
		if tokenString == "" {
			log.Warnw("WebSocket auth failed: missing token",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication token"})
			return
		}

		user := currentUser()
		if user == nil {
			log.Warnw("WebSocket auth failed: no logged-in user",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not logged in"})
			return
		}

		claims, err := auth.VerifySocketToken(tokenString, secret, user.ID)
		if err != nil {
			log.Warnw("WebSocket auth failed: invalid socket token",
				"error", err,
				"path", c.Request.URL.Path,
				"ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Set(string(UserIDKey), claims.Subject)
		log.Debugw("WebSocket auth successful",
			"userID", claims.Subject,
			"path", c.Request.URL.Path,
			"duration_ms", time.Since(startTime).Milliseconds())

		c.Next()
	}
}
