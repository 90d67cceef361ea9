package domain

import (
	"fmt"
	"strings"
)

// Role is the marketplace role of an authenticated caller.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole returns the role named by s.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBuyer, RoleManager, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Caller is the identity the transport layer resolved for a request. The core trusts it.
type Caller struct {
	ID   string
	Role Role
}

// Require fails with ErrUnauthorized unless the caller holds one of roles.
func (c Caller) Require(roles ...Role) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: authentication required", ErrUnauthorized)
	}
	for _, r := range roles {
		if c.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this action", ErrUnauthorized, c.Role)
}

// IsStaff reports whether the caller manages orders on behalf of the marketplace.
func (c Caller) IsStaff() bool {
	return c.Role == RoleManager || c.Role == RoleAdmin
}
