package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/painel-dev/painel/internal/models"
)

const (
	credentialsError = "Could not validate credentials"

	currentUserKey = "currentUser"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrInactiveUser      = errors.New("user is inactive")
)

// bearerToken pulls the token out of an "Authorization: Bearer <token>" header.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", ErrInvalidAuthFormat
	}
	return token, nil
}

// respondUnauthorized ends the request with a 401 and a bearer challenge
func respondUnauthorized(c *gin.Context, log zerolog.Logger, err error, detail string) {
	log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(detail)
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}

// requireUser resolves the bearer token to an active user and stores it on the
// request. Every failure gets the same 401 body.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respondUnauthorized(c, s.logger, err, credentialsError)
			return
		}

		username, err := s.tokens.Verify(token)
		if err != nil {
			respondUnauthorized(c, s.logger, err, credentialsError)
			return
		}

		user, err := s.catalog.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			respondUnauthorized(c, s.logger, err, credentialsError)
			return
		}
		if !user.IsActive {
			respondUnauthorized(c, s.logger, ErrInactiveUser, credentialsError)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
