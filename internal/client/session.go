// ABOUTME: Auth session management: login, refresh, current user, logout
// ABOUTME: Owns the client-held authentication state (tokens plus cached user)

package client

import (
	"context"
	"errors"
	"sync"

	"github.com/calderhq/toolbench/internal/api"
)

// Session state notifications.
const (
	msgLoginFailed    = "登录失败"
	msgRegisterOK     = "注册成功，请登录"
	msgRegisterFailed = "注册失败"
	msgLoggedOut      = "已退出登录"
)

// Session orchestrates authentication against the backend and caches the
// current user. Create one at startup and reset it via Logout; the token
// store is the single source of truth for "logged in".
type Session struct {
	client *Client

	mu   sync.Mutex
	user *api.User
}

// NewSession creates a session bound to the given client.
func NewSession(c *Client) *Session {
	return &Session{client: c}
}

// Login authenticates with the backend. On success both tokens are persisted
// and the current user is fetched immediately. Failures are notified and
// reported as false; Login never returns an error to its caller.
func (s *Session) Login(ctx context.Context, creds api.LoginRequest) bool {
	env, err := s.client.Post(ctx, "/auth/login", creds)
	if err != nil {
		s.notifyFailure(err, msgLoginFailed)
		return false
	}

	var tokens api.AuthTokens
	if err := env.DecodeData(&tokens); err != nil || tokens.AccessToken == "" {
		s.client.notify.Error(env.ErrorText(msgLoginFailed))
		return false
	}

	store := s.client.tokens
	if err := store.Set(AccessToken, tokens.AccessToken); err != nil {
		s.client.logger.Error("persisting access token", "error", err)
		s.client.notify.Error(msgLoginFailed)
		return false
	}
	if err := store.Set(RefreshToken, tokens.RefreshToken); err != nil {
		s.client.logger.Error("persisting refresh token", "error", err)
	}

	// The tokens stay persisted; the login itself succeeded, but a session
	// without a resolvable user is reported as a failed login.
	if _, err := s.CurrentUser(ctx); err != nil {
		s.client.logger.Warn("fetching user after login", "error", err)
		s.notifyFailure(err, msgLoginFailed)
		return false
	}
	return true
}

// Register creates a new account. It does not log the new user in.
func (s *Session) Register(ctx context.Context, newUser api.UserCreate) bool {
	env, err := s.client.Post(ctx, "/auth/register", newUser)
	if err != nil {
		s.notifyFailure(err, msgRegisterFailed)
		return false
	}
	if !env.Success {
		s.client.notify.Error(env.ErrorText(msgRegisterFailed))
		return false
	}
	s.client.notify.Success(msgRegisterOK)
	return true
}

// CurrentUser fetches the authenticated user and replaces the cached copy.
// Errors propagate so callers (route guards, CLI) can decide the consequence.
func (s *Session) CurrentUser(ctx context.Context) (*api.User, error) {
	env, err := s.client.Get(ctx, "/auth/me")
	if err != nil {
		return nil, err
	}
	var user api.User
	if err := env.DecodeData(&user); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return &user, nil
}

// Refresh exchanges the stored refresh token for a new token pair.
func (s *Session) Refresh(ctx context.Context) error {
	refresh, ok := s.client.tokens.Get(RefreshToken)
	if !ok {
		return errors.New("no refresh token stored")
	}
	env, err := s.client.Post(ctx, "/auth/refresh", api.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		return err
	}
	var tokens api.AuthTokens
	if err := env.DecodeData(&tokens); err != nil || tokens.AccessToken == "" {
		return errors.New(env.ErrorText("refresh failed"))
	}
	if err := s.client.tokens.Set(AccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if tokens.RefreshToken != "" {
		if err := s.client.tokens.Set(RefreshToken, tokens.RefreshToken); err != nil {
			return err
		}
	}
	return nil
}

// Logout notifies the backend best-effort, then unconditionally clears the
// local tokens and cached user.
func (s *Session) Logout(ctx context.Context) {
	if _, err := s.client.Post(ctx, "/auth/logout", nil); err != nil {
		s.client.logger.Debug("backend logout", "error", err)
	}
	if err := s.client.tokens.Clear(); err != nil {
		s.client.logger.Warn("clearing tokens", "error", err)
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.client.notify.Success(msgLoggedOut)
}

// Initialize warms the user cache when a token is already stored. Failure is
// swallowed: a stale token must not block startup, the next authenticated
// request will surface it.
func (s *Session) Initialize(ctx context.Context) {
	if !s.IsAuthenticated() || s.User() != nil {
		return
	}
	if _, err := s.CurrentUser(ctx); err != nil {
		s.client.logger.Debug("initializing user", "error", err)
	}
}

// IsAuthenticated reflects the token store at the instant of the call.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.client.tokens.Get(AccessToken)
	return ok
}

// IsAdmin reports the cached user's admin flag; false when no user is cached.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil && s.user.IsAdmin
}

// User returns the cached user, or nil before the first successful fetch.
func (s *Session) User() *api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// notifyFailure surfaces err unless the classification path already notified.
func (s *Session) notifyFailure(err error, fallback string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		// statusError already pushed a notification for this failure.
		return
	}
	s.client.notify.Error(fallback)
}
