package auth

import (
	"fmt"

	"go-contacts-api/internal/model"
)

// RoleGate is built once per route with the roles allowed through it.
type RoleGate struct {
	allowed map[model.Role]struct{}
}

func NewRoleGate(roles ...model.Role) RoleGate {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return RoleGate{allowed: allowed}
}

func (g RoleGate) Allows(role model.Role) bool {
	_, ok := g.allowed[role]
	return ok
}

func (g RoleGate) Check(user model.User) error {
	if !g.Allows(user.Role) {
		return fmt.Errorf("%w: role %q", model.ErrForbidden, user.Role)
	}
	return nil
}
