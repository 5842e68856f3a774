package authz

import (
	"context"

	"github.com/openreach/openreach/pkg/elevation"
	"github.com/openreach/openreach/pkg/storage"
)

// PermissionEvaluator resolves named-permission grants independent of
// resource instances. Grants are resolved fresh on every call so a
// revocation takes effect immediately.
type PermissionEvaluator struct {
	grants storage.GrantStore
}

// NewPermissionEvaluator creates a permission evaluator.
func NewPermissionEvaluator(grants storage.GrantStore) *PermissionEvaluator {
	return &PermissionEvaluator{grants: grants}
}

func (e *PermissionEvaluator) permissionSet(ctx context.Context, userID int64) (map[string]struct{}, error) {
	perms, err := e.grants.GetPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set, nil
}

// HasPermission reports whether userID holds the named permission.
func (e *PermissionEvaluator) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	if elevation.IsElevated(ctx) {
		return true, nil
	}
	set, err := e.permissionSet(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := set[name]
	return ok, nil
}

// HasAny reports whether userID holds at least one of the named permissions,
// returning the first name that matched.
func (e *PermissionEvaluator) HasAny(ctx context.Context, userID int64, names ...string) (bool, string, error) {
	if elevation.IsElevated(ctx) {
		if len(names) > 0 {
			return true, names[0], nil
		}
		return true, "", nil
	}
	set, err := e.permissionSet(ctx, userID)
	if err != nil {
		return false, "", err
	}
	for _, name := range names {
		if _, ok := set[name]; ok {
			return true, name, nil
		}
	}
	return false, "", nil
}

// HasAll reports whether userID holds every named permission, returning the
// first missing name on failure.
func (e *PermissionEvaluator) HasAll(ctx context.Context, userID int64, names ...string) (bool, string, error) {
	if elevation.IsElevated(ctx) {
		return true, "", nil
	}
	set, err := e.permissionSet(ctx, userID)
	if err != nil {
		return false, "", err
	}
	for _, name := range names {
		if _, ok := set[name]; !ok {
			return false, name, nil
		}
	}
	return true, "", nil
}
