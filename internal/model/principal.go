package model

import "strings"

// Roles known by the catalog.
const (
	RoleAdmin       = "Admin"
	RoleContributor = "Contributor"
	RoleUser        = "User"
)

// A Principal is the authenticated caller of a request.
type Principal struct {
	IdentityProvider string   `json:"identityProvider"`
	UserID           string   `json:"userId"`
	UserDetails      string   `json:"userDetails"`
	UserRoles        []string `json:"userRoles"`
}

// IsAuthenticated returns true if the principal carries a user identity.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

// HasRole returns true if the principal has the given role (case-insensitive).
func (p Principal) HasRole(role string) bool {
	for _, r := range p.UserRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
