// model/access.go
package model

// Principal is a user with resolved roles and permissions.
type Principal struct {
	UserID      string   `json:"userId"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether the principal holds the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal holds the given permission.
func (p Principal) HasPermission(permission string) bool {
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

// AccessRule describes what a principal must hold to pass a gate. Empty
// lists are vacuously satisfied; RequireAll switches ANY to ALL semantics.
type AccessRule struct {
	Permissions []string `json:"permissions,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RequireAll  bool     `json:"requireAll,omitempty"`
}

// Empty reports whether the rule restricts anything at all.
func (r AccessRule) Empty() bool {
	return len(r.Permissions) == 0 && len(r.Roles) == 0
}
