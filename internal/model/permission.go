package model

import (
	"errors"
	"fmt"
)

var ErrUnknownPermission = errors.New("unknown permission")

// Permission is both a grant a group holds and the action being checked.
// Values are stored verbatim in group_permissions.permission.
type Permission string

const (
	PermissionFullControl Permission = "Full Control"
	PermissionModify      Permission = "Modify"
	PermissionReadExecute Permission = "Read & Execute"
	PermissionRead        Permission = "Read"
	PermissionWrite       Permission = "Write"
	PermissionDelete      Permission = "Delete"
)

// implied lists every action a granted permission authorizes, itself included.
var implied = map[Permission][]Permission{
	PermissionFullControl: {PermissionFullControl, PermissionModify, PermissionReadExecute, PermissionRead, PermissionWrite, PermissionDelete},
	PermissionModify:      {PermissionModify, PermissionReadExecute, PermissionRead, PermissionWrite, PermissionDelete},
	PermissionReadExecute: {PermissionReadExecute, PermissionRead},
	PermissionRead:        {PermissionRead},
	PermissionWrite:       {PermissionWrite},
	PermissionDelete:      {PermissionDelete},
}

// AllPermissions returns the closed set in display order.
func AllPermissions() []Permission {
	return []Permission{
		PermissionFullControl,
		PermissionModify,
		PermissionReadExecute,
		PermissionRead,
		PermissionWrite,
		PermissionDelete,
	}
}

func (p Permission) Valid() bool {
	_, ok := implied[p]
	return ok
}

// Includes reports whether holding p authorizes action.
func (p Permission) Includes(action Permission) bool {
	for _, a := range implied[p] {
		if a == action {
			return true
		}
	}
	return false
}

func (p Permission) String() string {
	return string(p)
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// ParsePermissions validates and de-duplicates a requested permission set.
func ParsePermissions(values []string) ([]Permission, error) {
	seen := make(map[Permission]bool, len(values))
	perms := make([]Permission, 0, len(values))
	for _, v := range values {
		p, err := ParsePermission(v)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		perms = append(perms, p)
	}
	return perms, nil
}

// AnyIncludes reports whether at least one of the granted permissions authorizes action.
func AnyIncludes(granted []Permission, action Permission) bool {
	for _, g := range granted {
		if g.Includes(action) {
			return true
		}
	}
	return false
}
