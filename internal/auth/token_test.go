// ABOUTME: Unit tests for token issuing and verification
// ABOUTME: Tests valid pairs, expired tokens, and access/refresh use separation

package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestAuthority_PairRoundTrip(t *testing.T) {
	authority, err := NewAuthority(testSecret, 0, 0)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}

	pair, err := authority.IssuePair(42)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("IssuePair() returned empty token")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens must differ")
	}

	gotID, err := authority.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if gotID != 42 {
		t.Errorf("VerifyAccess() = %d, want 42", gotID)
	}

	gotID, err = authority.VerifyRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if gotID != 42 {
		t.Errorf("VerifyRefresh() = %d, want 42", gotID)
	}
}

func TestAuthority_WrongUse(t *testing.T) {
	authority, err := NewAuthority(testSecret, 0, 0)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}

	pair, err := authority.IssuePair(1)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	// A refresh token must not pass access verification, and vice versa.
	if _, err := authority.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrWrongUse) {
		t.Errorf("VerifyAccess(refresh token) error = %v, want ErrWrongUse", err)
	}
	if _, err := authority.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrWrongUse) {
		t.Errorf("VerifyRefresh(access token) error = %v, want ErrWrongUse", err)
	}
}

func TestAuthority_ExpiredToken(t *testing.T) {
	authority, err := NewAuthority(testSecret, -time.Minute, -time.Minute)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}
	// Negative TTLs fall back to defaults, so sign directly.
	token, err := authority.sign(1, UseAccess, -time.Minute)
	if err != nil {
		t.Fatalf("sign() error = %v", err)
	}

	if _, err := authority.VerifyAccess(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("VerifyAccess(expired) error = %v, want ErrExpiredToken", err)
	}
}

func TestAuthority_InvalidToken(t *testing.T) {
	authority, err := NewAuthority(testSecret, 0, 0)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				other, _ := NewAuthority([]byte("ffffffffffffffffffffffffffffffff"), 0, 0)
				pair, _ := other.IssuePair(1)
				return pair.AccessToken
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := authority.VerifyAccess(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("VerifyAccess() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewAuthority_ShortSecret(t *testing.T) {
	if _, err := NewAuthority([]byte("too-short"), 0, 0); err == nil {
		t.Error("NewAuthority() expected error for short secret, got nil")
	}
}
