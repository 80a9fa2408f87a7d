package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
	RoleViewer   Role = "VIEWER"
)

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   Role
}

func (p Principal) IsAdmin() bool    { return p.Role == RoleAdmin }
func (p Principal) IsOperator() bool { return p.Role == RoleOperator }
func (p Principal) IsViewer() bool   { return p.Role == RoleViewer }

// CanMutate reports whether the principal may drive replacements and sweeps.
func (p Principal) CanMutate() bool { return p.Role == RoleAdmin || p.Role == RoleOperator }
