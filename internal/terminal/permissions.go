package terminal

import "strings"

// Permissions decides whether the terminal user may run something.
type Permissions interface {
	HasPermission(perm string) bool
}

// AllowAll grants everything.
type AllowAll struct{}

func (AllowAll) HasPermission(string) bool { return true }

// PermissionSet grants the listed permissions. An entry ending in ".*"
// grants every permission below that prefix, and "*" grants everything.
type PermissionSet []string

func (s PermissionSet) HasPermission(perm string) bool {
	for _, p := range s {
		switch {
		case p == "*", p == perm:
			return true
		case strings.HasSuffix(p, ".*") && strings.HasPrefix(perm, p[:len(p)-1]):
			return true
		}
	}
	return false
}
