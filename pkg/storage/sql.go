package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openreach/openreach/pkg/api"
)

// SQLRepository implements Repository and GrantStore on database/sql.
// Production runs it against PostgreSQL (lib/pq); tests run it against an
// in-memory SQLite database.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository creates a repository backed by db.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// GetUser returns a user by id.
func (r *SQLRepository) GetUser(ctx context.Context, id int64) (*api.User, error) {
	query := `
		SELECT id, username, email, role, organization_id, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`
	var u api.User
	var email sql.NullString
	var orgID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &email, &u.Role, &orgID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	if email.Valid {
		u.Email = email.String
	}
	if orgID.Valid {
		v := orgID.Int64
		u.OrganizationID = &v
	}
	return &u, nil
}

// GetOrganization returns an organization by id.
func (r *SQLRepository) GetOrganization(ctx context.Context, id int64) (*api.Organization, error) {
	query := `
		SELECT id, name, display_name, is_active, created_at, updated_at
		FROM organizations WHERE id = $1
	`
	var o api.Organization
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.Name, &o.DisplayName, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %d: %w", id, err)
	}
	return &o, nil
}

// GetCase returns a case by id.
func (r *SQLRepository) GetCase(ctx context.Context, id int64) (*api.Case, error) {
	query := `
		SELECT id, organization_id, created_by, assigned_to_user_id, status, title, created_at, updated_at
		FROM cases WHERE id = $1
	`
	var c api.Case
	var orgID, assignedTo sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &orgID, &c.CreatedBy, &assignedTo, &c.Status, &c.Title, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %d: %w", id, err)
	}
	if orgID.Valid {
		v := orgID.Int64
		c.OrganizationID = &v
	}
	if assignedTo.Valid {
		v := assignedTo.Int64
		c.AssignedToUserID = &v
	}
	return &c, nil
}

// GetTeam returns a team by id.
func (r *SQLRepository) GetTeam(ctx context.Context, id int64) (*api.Team, error) {
	query := `
		SELECT id, organization_id, name, display_name, created_at, updated_at, created_by
		FROM teams WHERE id = $1
	`
	var t api.Team
	var createdBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.OrganizationID, &t.Name, &t.DisplayName, &t.CreatedAt, &t.UpdatedAt, &createdBy,
	)
	if err == sql.ErrNoRows {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team %d: %w", id, err)
	}
	if createdBy.Valid {
		v := createdBy.Int64
		t.CreatedBy = &v
	}
	return &t, nil
}

// GetTeamMember returns the membership linking userID to teamID.
func (r *SQLRepository) GetTeamMember(ctx context.Context, teamID, userID int64) (*api.TeamMember, error) {
	query := `
		SELECT id, team_id, user_id, role_in_team, added_at, added_by
		FROM team_members WHERE team_id = $1 AND user_id = $2
	`
	var m api.TeamMember
	var addedBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, teamID, userID).Scan(
		&m.ID, &m.TeamID, &m.UserID, &m.RoleInTeam, &m.AddedAt, &addedBy,
	)
	if err == sql.ErrNoRows {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	if addedBy.Valid {
		v := addedBy.Int64
		m.AddedBy = &v
	}
	return &m, nil
}

// GetPermissions returns all permission names granted to a user. The query
// runs fresh on every call; a revoked grant disappears immediately.
func (r *SQLRepository) GetPermissions(ctx context.Context, userID int64) ([]string, error) {
	query := `SELECT permission FROM permission_grants WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
