// Package hosttoken issues and validates the short-lived token the desktop
// shell presents on every API and websocket call. There are no user
// accounts: the token only proves the caller is the shell that booted this
// server, so a stray local process cannot read the workspace.
package hosttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nathsir75/mmap/internal/typeid"
)

const tokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid host token")

type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Issue mints a token for a new shell session and returns it with the
// session id it carries.
func (s *Service) Issue() (token, sessionID string, err error) {
	sessionID = typeid.NewSessionID()

	claims := jwt.MapClaims{
		"sub": sessionID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(tokenTTL).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, sessionID, nil
}

// Validate checks the token and returns the session id it was issued for.
func (s *Service) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	sessionID, ok := claims["sub"].(string)
	if !ok {
		return "", ErrInvalidToken
	}
	if err := typeid.Validate(sessionID, typeid.PrefixSession); err != nil {
		return "", ErrInvalidToken
	}
	return sessionID, nil
}
