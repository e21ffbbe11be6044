package models

import (
	"fmt"
	"strings"
)

// Role is the permission level of an actor.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleContributor Role = "contributor"
)

// ParseRole parses a role name. "manager" is accepted as an alias for contributor.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "contributor", "manager":
		return RoleContributor, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Actor is an identity that performs operations on the board.
type Actor struct {
	ID                 string
	Name               string
	Email              string
	Role               Role
	OrganizationID     string
	Avatar             string
	AssignedProjectIDs []string
}

// IsAdmin reports whether a is non-nil and has the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Organization owns projects and actors.
type Organization struct {
	ID   string
	Name string
	Code string
}
