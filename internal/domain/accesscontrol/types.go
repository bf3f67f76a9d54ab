package accesscontrol

import (
	"context"
	"errors"
	"time"
)

var ErrRoleNotAssigned = errors.New("role not assigned to user")

type RoleName string

const (
	RoleAdmin RoleName = "admin"
)

type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Store interface {
	AssignRole(ctx context.Context, userID int64, role RoleName) error
	RevokeRole(ctx context.Context, userID int64, role RoleName) error
	UserRoles(ctx context.Context, userID int64) ([]Role, error)
	UserHasRole(ctx context.Context, userID int64, role RoleName) (bool, error)
}
