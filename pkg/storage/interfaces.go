package storage

import (
	"context"

	"github.com/openreach/openreach/pkg/api"
)

// Repository provides read-only entity lookups for the authorization
// evaluators. Implementations return api.ErrNotFound for a missing entity;
// any other error is an infrastructure fault and is propagated as such.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*api.User, error)
	GetOrganization(ctx context.Context, id int64) (*api.Organization, error)
	GetCase(ctx context.Context, id int64) (*api.Case, error)
	GetTeam(ctx context.Context, id int64) (*api.Team, error)

	// GetTeamMember returns the membership record linking userID to teamID,
	// or api.ErrNotFound when the user is not on the team.
	GetTeamMember(ctx context.Context, teamID, userID int64) (*api.TeamMember, error)
}

// GrantStore resolves the named permissions held by a user. Resolution is a
// pure function of the user id at call time: no caching across requests, so
// a revoked grant is never served stale.
type GrantStore interface {
	GetPermissions(ctx context.Context, userID int64) ([]string, error)
}
