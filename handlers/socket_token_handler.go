package handlers

import (
	"net/http"
	"time"

	"github.com/NomadCrew/nomad-crew-planner/config"
	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/auth"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const socketTokenTTL = time.Minute

// SocketTokenHandler issues the tokens the browser presents when it opens the
// page socket.
type SocketTokenHandler struct {
	session SessionReader
	appID   string
	secret  string
	log     *zap.SugaredLogger
}

func NewSocketTokenHandler(session SessionReader, authCfg config.AuthConfig) *SocketTokenHandler {
	return &SocketTokenHandler{
		session: session,
		appID:   authCfg.AppID,
		secret:  authCfg.AppSecret,
		log:     logger.GetLogger().Named("socket_token_handler"),
	}
}

// SocketTokenResponse carries a token valid for ExpiresIn seconds. Required
// is false when the socket is not authenticated and no token is issued.
type SocketTokenResponse struct {
	Required  bool   `json:"required"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// IssueTokenHandler handles GET /api/ws-token.
func (h *SocketTokenHandler) IssueTokenHandler(c *gin.Context) {
	if h.secret == "" {
		c.JSON(http.StatusOK, SocketTokenResponse{Required: false})
		return
	}

	user := h.session.User()
	if user == nil {
		_ = c.Error(apperrors.AuthenticationFailed("not logged in", nil))
		return
	}

	token, err := auth.SignSocketToken(user.ID, h.appID, h.secret, socketTokenTTL)
	if err != nil {
		h.log.Errorw("Failed to issue socket token", "userID", user.ID, "error", err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SocketTokenResponse{
		Required:  true,
		Token:     token,
		ExpiresIn: int(socketTokenTTL.Seconds()),
	})
}
