package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/painel-dev/painel/internal/catalog"
)

// TokenRequest is the OAuth2 password grant form
type TokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// TokenResponse is the OAuth2 token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// @Summary Issue access token
// @Description OAuth2 password grant
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} map[string]interface{}
// @Router /token [post]
func (s *Server) issueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	user, err := s.catalog.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondUnauthorized(c, s.logger, err, "Incorrect username or password")
			return
		}
		s.logger.Error().Err(err).Msg("Failed to authenticate user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	token, _, err := s.tokens.Issue(user.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User logged in")

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserDetail
// @Failure 401 {object} map[string]interface{}
// @Router /api/me [get]
func (s *Server) getCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		respondUnauthorized(c, s.logger, errors.New("no user on request"), credentialsError)
		return
	}

	c.JSON(http.StatusOK, UserDetail{
		ID:       user.ID,
		Username: user.Username,
		IsActive: user.IsActive,
	})
}
