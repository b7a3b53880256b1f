package models

import (
	"time"

	"github.com/google/uuid"
)

// Permission is an immutable catalog entry identified by a
// "resource.action" code. The catalog is seeded once at migration time.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserPermission is an explicit grant on top of the role-implied set.
// Grants are additive only; there is no deny form.
type UserPermission struct {
	UserID       uuid.UUID `json:"user_id"`
	PermissionID uuid.UUID `json:"permission_id"`
	GrantedBy    uuid.UUID `json:"granted_by"`
	GrantedAt    time.Time `json:"granted_at"`
}

// GrantDetail is a grant joined with its permission code for API responses.
type GrantDetail struct {
	Code      string    `json:"code"`
	GrantedBy uuid.UUID `json:"granted_by"`
	GrantedAt time.Time `json:"granted_at"`
}
