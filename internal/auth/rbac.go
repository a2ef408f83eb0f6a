package auth

import "github.com/storygraph/storygraph/internal/models"

type Permission string

const (
	// PermRead covers every list/get query.
	PermRead Permission = "read"
	// PermWrite covers create/update/delete of content inside an organization.
	PermWrite Permission = "write"
	// PermAdmin covers destructive organization-level operations: deleting
	// projects and categories, managing members.
	PermAdmin Permission = "admin"
)

var rolePermissions = map[models.Role][]Permission{
	models.RoleAdmin:  {PermRead, PermWrite, PermAdmin},
	models.RoleMember: {PermRead, PermWrite},
	models.RoleViewer: {PermRead},
}

// RoleAllows reports whether role grants perm. Unknown roles grant nothing.
func RoleAllows(role models.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
