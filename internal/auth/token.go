// ABOUTME: JWT issuance and verification for the mock backend
// ABOUTME: HS256 access/refresh token pairs with configurable TTLs

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongUse     = errors.New("token used for wrong purpose")
)

// MinSecretLength is the minimum accepted HMAC secret size in bytes.
const MinSecretLength = 32

// Token purposes, stored in the "use" claim so an access token cannot be
// replayed against the refresh endpoint or vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Authority signs and verifies HS256 tokens for user sessions.
type Authority struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthority creates a token authority with the given secret and TTLs.
// Zero TTLs fall back to the defaults.
func NewAuthority(secret []byte, accessTTL, refreshTTL time.Duration) (*Authority, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Authority{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// IssuePair mints an access and a refresh token for the given user ID.
func (a *Authority) IssuePair(userID int64) (TokenPair, error) {
	access, err := a.sign(userID, UseAccess, a.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := a.sign(userID, UseRefresh, a.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("signing refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (a *Authority) sign(userID int64, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", userID),
		"use": use,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyAccess validates an access token and returns the user ID.
func (a *Authority) VerifyAccess(tokenString string) (int64, error) {
	return a.verify(tokenString, UseAccess)
}

// VerifyRefresh validates a refresh token and returns the user ID.
func (a *Authority) VerifyRefresh(tokenString string) (int64, error) {
	return a.verify(tokenString, UseRefresh)
}

func (a *Authority) verify(tokenString, use string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	if tokenUse, _ := claims["use"].(string); tokenUse != use {
		return 0, ErrWrongUse
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}

	var userID int64
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil {
		return 0, fmt.Errorf("%w: malformed sub claim", ErrInvalidToken)
	}
	return userID, nil
}
