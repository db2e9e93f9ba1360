// ABOUTME: Development seed data for the mock backend
// ABOUTME: Creates the admin account and the sample tool configurations

package store

import (
	"context"
	"fmt"

	"github.com/calderhq/toolbench/internal/api"
	"github.com/calderhq/toolbench/internal/auth"
)

// Credentials for the seeded development account.
const (
	SeedAdminEmail    = "admin@example.com"
	SeedAdminPassword = "admin123"
)

// Seed populates an empty database with the development dataset: one admin
// account with the SUPER_ADMIN role and three sample tools. A database that
// already has users is left untouched.
func (s *SQLiteStore) Seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(SeedAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}
	admin := &User{
		Username:     "admin",
		Email:        SeedAdminEmail,
		PasswordHash: hash,
		FullName:     "管理员",
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}

	role := &api.Role{
		Name:        "超级管理员",
		Code:        "SUPER_ADMIN",
		Description: "系统超级管理员",
		IsActive:    true,
	}
	if err := s.CreateRole(ctx, role); err != nil {
		return fmt.Errorf("seeding role: %w", err)
	}
	if err := s.AssignRole(ctx, admin.ID, role.ID); err != nil {
		return fmt.Errorf("assigning seed role: %w", err)
	}

	for _, tool := range seedTools() {
		if err := s.CreateTool(ctx, &tool); err != nil {
			return fmt.Errorf("seeding tool %s: %w", tool.Name, err)
		}
	}

	s.logger.Info("seeded development data", "admin", SeedAdminEmail, "tools", len(seedTools()))
	return nil
}

func seedTools() []api.ToolConfig {
	return []api.ToolConfig{
		{
			Name:        "database_query",
			Description: "数据库查询工具，支持 SQLite、PostgreSQL、MySQL 等多种数据库",
			IsActive:    true,
			Parameters: []api.ToolParameter{
				{Name: "sql", Description: "SQL 查询语句", Type: api.ParamString, Required: true},
				{Name: "params", Description: "查询参数", Type: api.ParamArray, Required: false, Default: []any{}},
			},
			Code: "function execute(params) {\n  const { sql, params: queryParams } = params;\n  return { success: true, data: [] };\n}",
		},
		{
			Name:        "file_reader",
			Description: "文件读取工具，支持读取文本文件和 JSON 文件",
			IsActive:    true,
			Parameters: []api.ToolParameter{
				{Name: "path", Description: "文件路径", Type: api.ParamString, Required: true},
				{Name: "encoding", Description: "文件编码", Type: api.ParamString, Required: false, Default: "utf-8", Enum: []string{"utf-8", "gbk", "latin1"}},
			},
			Code: "function execute(params) {\n  const { path, encoding } = params;\n  return { success: true, content: '' };\n}",
		},
		{
			Name:        "http_request",
			Description: "HTTP 请求工具，支持 GET、POST、PUT、DELETE 等方法",
			IsActive:    false,
			Parameters: []api.ToolParameter{
				{Name: "url", Description: "请求 URL", Type: api.ParamString, Required: true},
				{Name: "method", Description: "HTTP 方法", Type: api.ParamString, Required: true, Enum: []string{"GET", "POST", "PUT", "DELETE", "PATCH"}},
				{Name: "headers", Description: "请求头", Type: api.ParamObject, Required: false, Default: map[string]any{}},
				{Name: "body", Description: "请求体", Type: api.ParamObject, Required: false},
			},
			Code: "async function execute(params) {\n  const { url, method, headers, body } = params;\n  return { success: true, status: 200, data: {} };\n}",
		},
	}
}
