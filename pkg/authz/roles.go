package authz

import (
	"context"
	"errors"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/elevation"
	"github.com/openreach/openreach/pkg/observability"
	"github.com/openreach/openreach/pkg/storage"
)

// RoleEvaluator resolves role- and resource-relationship-based access checks.
// Every check re-derives the organization scope from the target resource,
// never from caller-supplied parameters, so a tampered organization id cannot
// cross the tenant boundary.
//
// All checks return (false, nil) for a missing user or resource; callers are
// expected to surface "not found" separately before invoking a check.
// Repository faults propagate as errors, never as a silent deny.
type RoleEvaluator struct {
	repo    storage.Repository
	metrics *observability.Metrics
}

// NewRoleEvaluator creates a role evaluator. metrics may be nil.
func NewRoleEvaluator(repo storage.Repository, metrics *observability.Metrics) *RoleEvaluator {
	return &RoleEvaluator{repo: repo, metrics: metrics}
}

func (e *RoleEvaluator) observe(check string, allowed bool) {
	if e.metrics == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	e.metrics.AuthzChecksTotal.WithLabelValues(check, decision).Inc()
}

func (e *RoleEvaluator) observeError(check string) {
	if e.metrics == nil {
		return
	}
	e.metrics.AuthzErrorsTotal.WithLabelValues(check).Inc()
}

// actor loads the acting user. A missing user is a deny, not an error.
func (e *RoleEvaluator) actor(ctx context.Context, userID int64) (*api.User, error) {
	user, err := e.repo.GetUser(ctx, userID)
	if errors.Is(err, api.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CanViewCase reports whether userID may view caseID. Public users see only
// cases they created or cases no organization has claimed; organization
// users see any case in their own organization.
func (e *RoleEvaluator) CanViewCase(ctx context.Context, userID, caseID int64) (bool, error) {
	const check = "view_case"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	c, err := e.repo.GetCase(ctx, caseID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	var allowed bool
	if user.IsPublic() {
		allowed = c.CreatedBy == userID || c.OrganizationID == nil
	} else {
		allowed = c.OrganizationID != nil && *c.OrganizationID == *user.OrganizationID
	}
	e.observe(check, allowed)
	return allowed, nil
}

// CanEditCase reports whether userID may edit caseID. A user assigned to the
// case may edit it regardless of role or organization.
func (e *RoleEvaluator) CanEditCase(ctx context.Context, userID, caseID int64) (bool, error) {
	const check = "edit_case"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	c, err := e.repo.GetCase(ctx, caseID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	// Assignment grants edit independent of role and tenant.
	if c.AssignedToUserID != nil && *c.AssignedToUserID == userID {
		e.observe(check, true)
		return true, nil
	}

	var allowed bool
	if user.IsPublic() {
		allowed = c.CreatedBy == userID
	} else {
		switch user.Role {
		case api.RoleOrgAdmin, api.RoleCoordinator, api.RoleSocialWorker:
			allowed = c.OrganizationID != nil && *c.OrganizationID == *user.OrganizationID
		case api.RoleDataAnalyst, api.RoleVolunteer, api.RolePublic, api.RoleGlobalAdmin:
			allowed = false
		}
	}
	e.observe(check, allowed)
	return allowed, nil
}

// CanAssignCase reports whether userID may assign caseID to a worker. Only
// organization admins and coordinators, and only within their organization.
func (e *RoleEvaluator) CanAssignCase(ctx context.Context, userID, caseID int64) (bool, error) {
	const check = "assign_case"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	c, err := e.repo.GetCase(ctx, caseID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	var allowed bool
	switch user.Role {
	case api.RoleOrgAdmin, api.RoleCoordinator:
		allowed = user.OrganizationID != nil &&
			c.OrganizationID != nil && *c.OrganizationID == *user.OrganizationID
	case api.RoleSocialWorker, api.RoleDataAnalyst, api.RoleVolunteer, api.RolePublic, api.RoleGlobalAdmin:
		allowed = false
	}
	e.observe(check, allowed)
	return allowed, nil
}

// CanCloseCase reports whether userID may close caseID.
func (e *RoleEvaluator) CanCloseCase(ctx context.Context, userID, caseID int64) (bool, error) {
	const check = "close_case"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	c, err := e.repo.GetCase(ctx, caseID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	var allowed bool
	if user.IsPublic() {
		allowed = c.CreatedBy == userID
	} else {
		switch user.Role {
		case api.RoleOrgAdmin, api.RoleCoordinator, api.RoleSocialWorker:
			allowed = c.OrganizationID != nil && *c.OrganizationID == *user.OrganizationID
		case api.RoleDataAnalyst, api.RoleVolunteer, api.RolePublic, api.RoleGlobalAdmin:
			allowed = false
		}
	}
	e.observe(check, allowed)
	return allowed, nil
}

// CanManageTeam reports whether userID may manage teamID. Organization
// admins manage any team in their organization; a team leader manages their
// own team regardless of organization role.
func (e *RoleEvaluator) CanManageTeam(ctx context.Context, userID, teamID int64) (bool, error) {
	const check = "manage_team"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	team, err := e.repo.GetTeam(ctx, teamID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	if user.Role == api.RoleOrgAdmin &&
		user.OrganizationID != nil && team.OrganizationID == *user.OrganizationID {
		e.observe(check, true)
		return true, nil
	}

	member, err := e.repo.GetTeamMember(ctx, teamID, userID)
	if errors.Is(err, api.ErrNotFound) {
		e.observe(check, false)
		return false, nil
	}
	if err != nil {
		e.observeError(check)
		return false, err
	}

	allowed := member.RoleInTeam == api.TeamRoleLeader
	e.observe(check, allowed)
	return allowed, nil
}

// CanViewStatistics reports whether userID may view orgID's statistics.
// Restricted to organization admins, coordinators, and data analysts of
// that same organization.
func (e *RoleEvaluator) CanViewStatistics(ctx context.Context, userID, orgID int64) (bool, error) {
	return e.orgScopedCheck(ctx, "view_statistics", userID, orgID,
		api.RoleOrgAdmin, api.RoleCoordinator, api.RoleDataAnalyst)
}

// CanCreateSubUsers reports whether userID may create accounts under orgID.
func (e *RoleEvaluator) CanCreateSubUsers(ctx context.Context, userID, orgID int64) (bool, error) {
	return e.orgScopedCheck(ctx, "create_sub_users", userID, orgID, api.RoleOrgAdmin)
}

// CanManageServicePoint reports whether userID may manage orgID's service
// points.
func (e *RoleEvaluator) CanManageServicePoint(ctx context.Context, userID, orgID int64) (bool, error) {
	return e.orgScopedCheck(ctx, "manage_service_point", userID, orgID, api.RoleOrgAdmin)
}

// orgScopedCheck grants when the user holds one of the allowed roles inside
// their own organization. An admin of org A can never pass a check scoped to
// org B.
func (e *RoleEvaluator) orgScopedCheck(ctx context.Context, check string, userID, orgID int64, allowedRoles ...api.Role) (bool, error) {
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}
	if user.Role == api.RoleGlobalAdmin {
		e.observe(check, true)
		return true, nil
	}

	if user.OrganizationID == nil || *user.OrganizationID != orgID {
		e.observe(check, false)
		return false, nil
	}

	for _, role := range allowedRoles {
		if user.Role == role {
			e.observe(check, true)
			return true, nil
		}
	}
	e.observe(check, false)
	return false, nil
}

// HasAnyRole reports whether userID holds one of the given static roles.
func (e *RoleEvaluator) HasAnyRole(ctx context.Context, userID int64, roles ...api.Role) (bool, error) {
	const check = "has_any_role"
	if elevation.IsElevated(ctx) {
		e.observe(check, true)
		return true, nil
	}

	user, err := e.actor(ctx, userID)
	if err != nil {
		e.observeError(check)
		return false, err
	}
	if user == nil {
		e.observe(check, false)
		return false, nil
	}

	for _, role := range roles {
		if user.Role == role {
			e.observe(check, true)
			return true, nil
		}
	}
	e.observe(check, false)
	return false, nil
}
