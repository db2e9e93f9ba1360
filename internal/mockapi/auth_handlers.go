// ABOUTME: Authentication handlers for the mock backend
// ABOUTME: Login, registration, token refresh, logout and the current-user endpoint

package mockapi

import (
	"net/http"
	"strings"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/auth"
	"github.com/calderhq/toolbench/internal/store"
)

// handleLogin handles POST /auth/login. Any active account with matching
// credentials receives a fresh token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "邮箱和密码不能为空")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.writeError(w, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}
	if !user.IsActive {
		s.writeError(w, http.StatusForbidden, "账号已被禁用")
		return
	}

	pair, err := s.authority.IssuePair(user.ID)
	if err != nil {
		s.logger.Error("issuing tokens", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("login", "user", user.Username)
	s.writeData(w, api.AuthTokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

// handleRegister handles POST /auth/register. The new account is returned
// but not logged in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.UserCreate
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "用户名、邮箱和密码不能为空")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsActive:     true,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if err == store.ErrDuplicateUser {
			s.writeError(w, http.StatusBadRequest, "用户名或邮箱已被注册")
			return
		}
		s.logger.Error("creating user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("registered", "user", user.Username)
	s.writeData(w, user.ToAPI(nil))
}

// handleRefresh handles POST /auth/refresh, exchanging a refresh token for a
// new pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.RefreshRequest
	if err := decodeBody(r, &req); err != nil || req.RefreshToken == "" {
		s.writeError(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	userID, err := s.authority.VerifyRefresh(req.RefreshToken)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		s.writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}

	pair, err := s.authority.IssuePair(userID)
	if err != nil {
		s.logger.Error("issuing tokens", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeData(w, api.AuthTokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

// handleLogout handles POST /auth/logout. Tokens are stateless here, so this
// only acknowledges; clients clear their own store.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeDataMessage(w, nil, "已退出登录")
}

// handleMe handles GET /auth/me for the authenticated account.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user := currentUser(r)
	roles, err := s.store.ListUserRoles(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing roles", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeData(w, user.ToAPI(roles))
}
