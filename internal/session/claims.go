package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the part of the token payload the client cares about
type Claims struct {
	Subject   string
	ExpiresAt *time.Time
}

// User is the display projection of the claims
type User struct {
	Username  string
	ExpiresAt *time.Time
}

var parser = jwt.NewParser()

// DecodeToken reads the payload of a compact JWT without checking its signature.
// The server stays the authority; this is for display and expiry hints only.
func DecodeToken(token string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(token, &rc); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	claims := &Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		exp := rc.ExpiresAt.Time
		claims.ExpiresAt = &exp
	}
	return claims, nil
}

// Expired compares exp (seconds) against now in milliseconds. A token without
// exp never expires client side.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix()*1000 < now.UnixMilli()
}

func (c *Claims) user() *User {
	return &User{Username: c.Subject, ExpiresAt: c.ExpiresAt}
}
