package handlers

import (
	"net/http"

	apperrors "github.com/NomadCrew/nomad-crew-planner/errors"
	"github.com/NomadCrew/nomad-crew-planner/internal/navigation"
	"github.com/NomadCrew/nomad-crew-planner/logger"
	"github.com/NomadCrew/nomad-crew-planner/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PageHandler exposes the planner page over HTTP. Rendering results reach
// the browser over the page socket; these endpoints only start them.
type PageHandler struct {
	page    PageRenderer
	auth    SessionEnder
	session SessionReader
	log     *zap.SugaredLogger
}

func NewPageHandler(page PageRenderer, auth SessionEnder, session SessionReader) *PageHandler {
	return &PageHandler{
		page:    page,
		auth:    auth,
		session: session,
		log:     logger.GetLogger().Named("page_handler"),
	}
}

// SessionResponse describes the logged-in user and the selected trip.
type SessionResponse struct {
	User         *types.User         `json:"user,omitempty"`
	Trips        []types.TripSummary `json:"trips"`
	ActiveTripID string              `json:"activeTripId,omitempty"`
	Path         string              `json:"path,omitempty"`
}

// RenderHandler renders the page without a trip selected.
func (h *PageHandler) RenderHandler(c *gin.Context) {
	h.render(c, types.NavigationParams{})
}

// RenderTripHandler handles index/index/trip/:tripId/user/:userId.
func (h *PageHandler) RenderTripHandler(c *gin.Context) {
	params, ok := navigation.ParseTripPath(c.Request.URL.Path)
	if !ok {
		_ = c.Error(apperrors.ValidationFailed("invalid navigation", "expected index/index/trip/<tripId>/user/<userId>"))
		return
	}
	h.render(c, params)
}

func (h *PageHandler) render(c *gin.Context, params types.NavigationParams) {
	if err := h.page.Render(c.Request.Context(), params); err != nil {
		h.log.Warnw("Page render failed", "tripID", params.TripID, "error", err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot())
}

// SessionHandler returns the current page state.
func (h *PageHandler) SessionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot())
}

// LogoutHandler detaches the active trip and clears the session.
func (h *PageHandler) LogoutHandler(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PageHandler) snapshot() SessionResponse {
	resp := SessionResponse{
		User:  h.session.User(),
		Trips: h.session.Trips(),
	}
	if resp.Trips == nil {
		resp.Trips = []types.TripSummary{}
	}
	if active := h.session.Active(); active != nil {
		resp.ActiveTripID = active.TripID()
		if active.Trip != nil {
			resp.Path = navigation.TripPath(active.TripID(), active.Trip.UserID())
		}
	}
	return resp
}
