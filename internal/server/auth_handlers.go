package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sessionRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}

type sessionResponse struct {
	User      userPayload `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func roleFromClaims(claims auth.SessionClaims) string {
	if claims.HasRole(auth.RoleAdmin) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

// handleCreateSession signs a user in by email. Anyone can claim any email;
// the session only attributes activity.
func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request sessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "request.malformed_body")
		return
	}

	email := strings.TrimSpace(request.Email)
	name := strings.TrimSpace(request.Name)
	if name == "" {
		name = auth.DisplayNameFromEmail(email)
	}
	roles := auth.RolesForEmail(email, h.adminMarker)
	role := roles[0]

	identity, err := h.identities.Resolve(c.Request.Context(), users.Profile{
		Email:       email,
		DisplayName: name,
		AvatarURL:   auth.DefaultAvatarURL(email),
		Role:        role,
	})
	if err != nil {
		if errors.Is(err, users.ErrInvalidIdentity) {
			badRequest(c, "auth.invalid_email")
			return
		}
		h.logger.Error("identity resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	token, expiresAt, err := h.tokens.IssueSessionToken(c.Request.Context(), auth.Identity{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Roles:       roles,
	})
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, maxAge, "/", "", false, true)

	c.JSON(http.StatusOK, sessionResponse{
		User: userPayload{
			ID:     identity.UserID,
			Name:   identity.DisplayName,
			Email:  identity.Email,
			Avatar: identity.AvatarURL,
			Role:   role,
		},
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (h *httpHandler) handleDeleteSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, userPayload{
		ID:     claims.UserID,
		Name:   claims.UserDisplayName,
		Email:  claims.UserEmail,
		Avatar: claims.UserAvatarURL,
		Role:   roleFromClaims(claims),
	})
}
