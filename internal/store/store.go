// ABOUTME: Storage types and errors for the mock backend
// ABOUTME: Defines user records and the sentinel errors shared by store methods

package store

import (
	"errors"
	"time"

	"github.com/calderhq/toolbench/internal/api"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned when a tool name collides with an existing one.
// Tool names are unique within the collection, enforced here.
var ErrDuplicateName = errors.New("tool name already exists")

// ErrDuplicateUser is returned when a username or email is already taken.
var ErrDuplicateUser = errors.New("user already exists")

// ErrBadInherit is returned when inherit_from does not name an active tool.
var ErrBadInherit = errors.New("inherit_from must reference an existing active tool")

// User is an account record. PasswordHash never leaves the store layer;
// handlers convert to api.User before serializing.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	IsActive     bool
	IsAdmin      bool
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ToAPI converts the record to its wire form, attaching the given roles.
func (u *User) ToAPI(roles []api.Role) api.User {
	return api.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Roles:     roles,
	}
}
