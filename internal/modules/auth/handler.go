package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gamelend/internal/middleware"
	"gamelend/internal/pkg/response"
)

type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler manages session init/clear for the browser
type Handler struct {
	service *Service
	cookie  CookieConfig
}

func NewHandler(service *Service, cookie CookieConfig) *Handler {
	return &Handler{service: service, cookie: cookie}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	v1.POST("/auth/session", h.InitSession)
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	protected.DELETE("/auth/session", h.ClearSession)
	protected.GET("/auth/me", h.GetMe)
}

// InitSession exchanges a backend token for a session cookie.
// POST /auth/session
func (h *Handler) InitSession(c *gin.Context) {
	var req InitSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "token is required")
		return
	}

	sess, err := h.service.InitSession(c.Request.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenRequired):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "token is required")
		case errors.Is(err, ErrInvalidToken):
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "SESSION_FAILED", "Failed to start session")
		}
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, sess.ID, maxAge, "/", "", h.cookie.Secure, true)

	response.Success(c, http.StatusCreated, SessionResponse{
		Viewer:    ViewerResponse{ID: sess.ViewerID, Username: sess.Username},
		ExpiresAt: sess.ExpiresAt,
	})
}

// ClearSession logs the viewer out.
// DELETE /auth/session
func (h *Handler) ClearSession(c *gin.Context) {
	if err := h.service.ClearSession(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		_ = c.Error(err)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// GetMe returns the viewer of the current session.
// GET /auth/me
func (h *Handler) GetMe(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if !sess.Authenticated() {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	response.Success(c, http.StatusOK, SessionResponse{
		Viewer:    ViewerResponse{ID: sess.ViewerID, Username: sess.Username},
		ExpiresAt: sess.ExpiresAt,
	})
}
