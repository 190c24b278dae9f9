// Package identity carries the verified caller through the core explicitly.
package identity

import (
	"context"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Caller is the identity resolved by the upstream authentication provider.
type Caller struct {
	UserID string
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// ParseRole maps a header value to a Role; anything unknown is a customer.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleCustomer
}

// Directory answers whether a user id is known. It is the UserDirectory
// collaborator; user profiles themselves live elsewhere.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
