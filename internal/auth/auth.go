// Package auth issues and validates the JWTs the HTTP surface runs
// on. Clients (the chat gateway, ops tooling) authenticate once with
// the shared API key and act as a discord user from then on.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken occurs when a token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// ErrBadAPIKey occurs when the presented API key does not match.
var ErrBadAPIKey = errors.New("invalid api key")

// tokenTTL bounds how long an issued token stays valid.
const tokenTTL = 24 * time.Hour

type Service struct {
	jwtSecret  []byte
	apiKeyHash string
}

// NewService creates an auth service. apiKeyHash is the bcrypt hash of
// the shared gateway key; empty disables the key check (dev mode).
func NewService(secret, apiKeyHash string) *Service {
	return &Service{jwtSecret: []byte(secret), apiKeyHash: apiKeyHash}
}

// HashAPIKey produces a bcrypt hash suitable for AUTH_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), 12)
	return string(bytes), err
}

// CheckAPIKey verifies the shared gateway key.
func (s *Service) CheckAPIKey(key string) error {
	if s.apiKeyHash == "" {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(key)) != nil {
		return ErrBadAPIKey
	}
	return nil
}

// GenerateToken issues a token acting as the given discord user.
func (s *Service) GenerateToken(discordUID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"discord_uid": strconv.FormatInt(discordUID, 10),
		"exp":         time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(s.jwtSecret)
}

// ValidateToken returns the discord uid a token acts as.
func (s *Service) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	raw, ok := claims["discord_uid"].(string)
	if !ok {
		return 0, ErrInvalidToken
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uid, nil
}
