// Package policy holds the role and ownership predicates of the catalog.
// They are pure functions of the caller and the record, no I/O is performed.
package policy

import "github.com/pbitips/workload/internal/model"

// IsAdmin returns true if the caller has the Admin role.
func IsAdmin(caller model.Principal) bool {
	return caller.IsAuthenticated() && caller.HasRole(model.RoleAdmin)
}

// IsOwner returns true if the caller published the item.
// Both the user id and its identity provider must match.
func IsOwner(caller model.Principal, item *model.PublishedItem) bool {
	return caller.IsAuthenticated() &&
		caller.UserID == item.OwnerID &&
		caller.IdentityProvider == item.OwnerIdentityProvider
}

// CanPublish returns true if the caller may publish an item of the given type.
// Layouts can be published by anyone authenticated, other types need Admin or Contributor.
func CanPublish(caller model.Principal, t model.ItemType) bool {
	if !caller.IsAuthenticated() {
		return false
	}

	switch t {
	case model.ItemTypeLayout:
		return true
	case model.ItemTypeTheme, model.ItemTypeProject, model.ItemTypeScrims:
		return caller.HasRole(model.RoleAdmin) || caller.HasRole(model.RoleContributor)
	default:
		return false
	}
}

// CanDelete returns true if the caller may delete the item.
func CanDelete(caller model.Principal, item *model.PublishedItem) bool {
	return IsOwner(caller, item) || IsAdmin(caller)
}

// CanEdit returns true if the caller may rename the item or change its preview.
func CanEdit(caller model.Principal, item *model.PublishedItem) bool {
	return IsOwner(caller, item) || IsAdmin(caller)
}

// CanModerate returns true if the caller may restrict items or see restricted ones in listings.
func CanModerate(caller model.Principal) bool {
	return IsAdmin(caller)
}

// CanListAll returns true if the caller may list the whole catalog at once.
func CanListAll(caller model.Principal) bool {
	return IsAdmin(caller)
}
