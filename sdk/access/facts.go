// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package access defines the principal-facing inputs of model-access policy:
// the roles and permission capability supplied by an external authentication
// collaborator, and the error kinds shared by the selection core.
package access

import (
	"sort"
	"strings"
)

// PermissionChecker is implemented by the authentication collaborator.
// Has reports whether the principal holds the named permission.
type PermissionChecker interface {
	Has(permission string) bool
}

// PermissionFunc adapts a plain predicate to PermissionChecker.
type PermissionFunc func(permission string) bool

// Has calls f(permission).
func (f PermissionFunc) Has(permission string) bool {
	if f == nil {
		return false
	}
	return f(permission)
}

// PermissionSet is a static set of granted permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names, ignoring blanks.
func NewPermissionSet(permissions ...string) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether permission is in the set.
func (s PermissionSet) Has(permission string) bool {
	_, ok := s[permission]
	return ok
}

// List returns the granted permissions in sorted order.
func (s PermissionSet) List() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RoleGrants derives permissions from roles using a role -> permissions table.
type RoleGrants struct {
	roles  []string
	grants map[string][]string
}

// NewRoleGrants returns a checker granting every permission mapped from any of roles.
func NewRoleGrants(roles []string, grants map[string][]string) RoleGrants {
	return RoleGrants{roles: roles, grants: grants}
}

// Has reports whether any held role maps to permission.
func (g RoleGrants) Has(permission string) bool {
	for _, role := range g.roles {
		for _, granted := range g.grants[role] {
			if granted == permission {
				return true
			}
		}
	}
	return false
}

// AnyOf grants a permission when at least one checker grants it.
func AnyOf(checkers ...PermissionChecker) PermissionChecker {
	return PermissionFunc(func(permission string) bool {
		for _, c := range checkers {
			if c != nil && c.Has(permission) {
				return true
			}
		}
		return false
	})
}

// Facts is a read-only snapshot of the principal's access context.
type Facts struct {
	// Roles held by the principal. Order is irrelevant.
	Roles []string
	// Permissions answers permission queries; nil grants nothing.
	Permissions PermissionChecker
}

// HasRole reports whether the principal holds role (exact match).
func (f Facts) HasRole(role string) bool {
	if role == "" {
		return false
	}
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Has reports whether the principal holds permission. A nil checker grants nothing.
func (f Facts) Has(permission string) bool {
	if f.Permissions == nil {
		return false
	}
	return f.Permissions.Has(permission)
}
