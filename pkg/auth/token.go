package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when the configured bearer token has expired.
var ErrTokenExpired = errors.New("access token expired")

// clockSkew is tolerated when checking expiry
const clockSkew = 30 * time.Second

// Identity is what the client can learn about the signed-in user from the
// bearer token without verifying its signature (the server does that).
type Identity struct {
	UserID    string
	ExpiresAt time.Time
}

// StaticToken is a TokenSource for a single pre-issued bearer token.
type StaticToken struct {
	raw      string
	identity Identity
	now      func() time.Time
}

// NewStaticToken parses raw as a JWT to extract the subject and expiry.
// An empty raw token yields an anonymous source that sends no header.
func NewStaticToken(raw string) (*StaticToken, error) {
	s := &StaticToken{raw: raw, now: time.Now}
	if raw == "" {
		return s, nil
	}

	identity, err := ParseIdentity(raw)
	if err != nil {
		return nil, err
	}
	s.identity = identity
	return s, nil
}

// Token implements httpclient.TokenSource.
func (s *StaticToken) Token(ctx context.Context) (string, error) {
	if s.raw == "" {
		return "", nil
	}
	if !s.identity.ExpiresAt.IsZero() && s.now().After(s.identity.ExpiresAt.Add(clockSkew)) {
		return "", ErrTokenExpired
	}
	return s.raw, nil
}

// Identity returns the user the token was issued to.
func (s *StaticToken) Identity() Identity {
	return s.identity
}

// ParseIdentity reads the subject (or user_id claim) and expiry from a JWT
// without verifying the signature.
func ParseIdentity(raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}

	var identity Identity
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		identity.UserID = sub
	} else if userID, ok := claims["user_id"].(string); ok {
		identity.UserID = userID
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Identity{}, fmt.Errorf("parse access token expiry: %w", err)
	}
	if exp != nil {
		identity.ExpiresAt = exp.Time
	}

	if identity.UserID == "" {
		return Identity{}, errors.New("access token has no subject")
	}
	return identity, nil
}
