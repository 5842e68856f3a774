package api

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when an entity does not exist.
// Callers must treat it as a distinct outcome from an authorization deny.
var ErrNotFound = errors.New("not found")

// Role is the closed set of static user roles. Policy code switches
// exhaustively over this set so that adding a role forces a review of
// every check.
type Role string

const (
	RoleGlobalAdmin  Role = "global_admin"
	RoleOrgAdmin     Role = "org_admin"
	RoleCoordinator  Role = "coordinator"
	RoleSocialWorker Role = "social_worker"
	RoleDataAnalyst  Role = "data_analyst"
	RoleVolunteer    Role = "volunteer"
	RolePublic       Role = "public"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGlobalAdmin, RoleOrgAdmin, RoleCoordinator, RoleSocialWorker,
		RoleDataAnalyst, RoleVolunteer, RolePublic:
		return true
	}
	return false
}

// User represents a platform account. OrganizationID is nil for public
// (self-registered) users, who can only act on cases they created.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	Role           Role       `json:"role"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// IsPublic reports whether the user belongs to no organization.
func (u *User) IsPublic() bool {
	return u.OrganizationID == nil
}

// Organization is the tenant boundary. Every organization-scoped entity
// carries its id.
type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CaseStatus represents the lifecycle state of a case.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusClosed     CaseStatus = "closed"
)

// Case is an outreach case. OrganizationID is nil for publicly submitted
// cases that no organization has claimed yet.
type Case struct {
	ID               int64      `json:"id"`
	OrganizationID   *int64     `json:"organization_id,omitempty"`
	CreatedBy        int64      `json:"created_by"`
	AssignedToUserID *int64     `json:"assigned_to_user_id,omitempty"`
	Status           CaseStatus `json:"status"`
	Title            string     `json:"title"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Team groups field workers within one organization.
type Team struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CreatedBy      *int64    `json:"created_by,omitempty"`
}

// TeamRole is a member's role within a team, independent of their
// organization role.
type TeamRole string

const (
	TeamRoleLeader TeamRole = "leader"
	TeamRoleMember TeamRole = "member"
)

// TeamMember links a user to a team.
type TeamMember struct {
	ID         int64     `json:"id"`
	TeamID     int64     `json:"team_id"`
	UserID     int64     `json:"user_id"`
	RoleInTeam TeamRole  `json:"role_in_team"`
	AddedAt    time.Time `json:"added_at"`
	AddedBy    *int64    `json:"added_by,omitempty"`
}

// PermissionGrant maps a user to one named permission. A user either holds
// a permission or does not; grants are unordered.
type PermissionGrant struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Permission string    `json:"permission"`
	GrantedAt  time.Time `json:"granted_at"`
	GrantedBy  *int64    `json:"granted_by,omitempty"`
}
