package user

import (
	"net/http"

	"scout-portal/internal/auth"
	"scout-portal/internal/config"
	"scout-portal/internal/domain"
	"scout-portal/internal/errors"
	"scout-portal/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const refreshCookie = "refresh_token"

// Handler handles HTTP requests for users
type Handler struct {
	service Service
}

// NewHandler creates a new user handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Register handles guardian registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(c.Request.Context(), user); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToSafeUser()})
}

func (h *Handler) issueTokens(c *gin.Context, user *domain.User) {
	accessToken, err := auth.GenerateAccessToken(user.ID, user.Role, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.Role, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	// Set refresh token as HttpOnly cookie
	c.SetCookie(
		refreshCookie,
		refreshToken,
		int(auth.RefreshTTL().Seconds()),
		"/",
		"",
		config.AppConfig.IsProduction(), // Secure
		true,                            // HttpOnly
	)

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		User:        user.ToSafeUser(),
	})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user, err := h.service.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	h.issueTokens(c, user)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookie)
	if err != nil || refreshToken == "" {
		var form FormRefresh
		if bindErr := c.ShouldBindJSON(&form); bindErr != nil || form.RefreshToken == "" {
			c.Error(errors.Unauthorized("Refresh token is missing", err))
			return
		}
		refreshToken = form.RefreshToken
	}

	token, err := auth.VerifyJWT(refreshToken)
	if err != nil {
		c.Error(errors.Unauthorized("Invalid token or expired!", err))
		return
	}

	data, err := auth.GetDataFromToken(token)
	if err != nil || !data.IsRefresh() {
		c.Error(errors.Unauthorized("Invalid token", err))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), data.UserID)
	if err != nil {
		c.Error(errors.Unauthorized("User not found", err))
		return
	}

	if user.TokenVersion != data.TokenVersion || !user.IsActive {
		c.Error(errors.Unauthorized("Invalid token!", nil))
		return
	}

	newAccessToken, err := auth.GenerateAccessToken(user.ID, user.Role, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": newAccessToken,
	})
}

// Logout revokes every token of the user
func (h *Handler) Logout(c *gin.Context) {
	if actor, ok := middleware.ActorFrom(c); ok {
		if err := h.service.IncreaseTokenVersion(c.Request.Context(), actor.ID); err != nil {
			log.Warn().Err(err).Uint64("user_id", actor.ID).Msg("failed to revoke tokens")
		}
	}
	// Clear refresh cookie
	c.SetCookie(refreshCookie, "", -1, "/", "", config.AppConfig.IsProduction(), true)
	c.Status(http.StatusNoContent)
}

// GetProfile handles getting the current user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.Error(errors.Unauthorized("user not found", nil))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), actor.ID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToSafeUser())
}
