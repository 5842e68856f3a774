package authz

import (
	"context"
	"errors"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/elevation"
	"github.com/openreach/openreach/pkg/storage"
)

// TenantGuard is the defense-in-depth tenant boundary check. It is used
// inside operation-specific evaluators, never as a substitute for them.
type TenantGuard struct {
	repo storage.Repository
}

// NewTenantGuard creates a tenant guard.
func NewTenantGuard(repo storage.Repository) *TenantGuard {
	return &TenantGuard{repo: repo}
}

// VerifyOrganizationAccess reports whether userID may act within orgID's
// scope at all. Global admins always pass, elevated or not; public users
// never pass; everyone else passes only for their own organization.
func (g *TenantGuard) VerifyOrganizationAccess(ctx context.Context, userID, orgID int64) (bool, error) {
	if elevation.IsElevated(ctx) {
		return true, nil
	}

	user, err := g.repo.GetUser(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if user.Role == api.RoleGlobalAdmin {
		return true, nil
	}
	if user.IsPublic() {
		return false, nil
	}
	return *user.OrganizationID == orgID, nil
}
