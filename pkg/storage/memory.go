package storage

import (
	"context"
	"sync"

	"github.com/openreach/openreach/pkg/api"
)

// MemoryRepository is an in-memory Repository and GrantStore. It backs unit
// tests and local development; production uses SQLRepository.
type MemoryRepository struct {
	mu          sync.RWMutex
	users       map[int64]*api.User
	orgs        map[int64]*api.Organization
	cases       map[int64]*api.Case
	teams       map[int64]*api.Team
	members     map[int64][]*api.TeamMember // keyed by team id
	permissions map[int64][]string          // keyed by user id
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[int64]*api.User),
		orgs:        make(map[int64]*api.Organization),
		cases:       make(map[int64]*api.Case),
		teams:       make(map[int64]*api.Team),
		members:     make(map[int64][]*api.TeamMember),
		permissions: make(map[int64][]string),
	}
}

// AddUser stores a user.
func (m *MemoryRepository) AddUser(u *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// AddOrganization stores an organization.
func (m *MemoryRepository) AddOrganization(o *api.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[o.ID] = o
}

// AddCase stores a case.
func (m *MemoryRepository) AddCase(c *api.Case) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c
}

// AddTeam stores a team.
func (m *MemoryRepository) AddTeam(t *api.Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teams[t.ID] = t
}

// AddTeamMember stores a team membership.
func (m *MemoryRepository) AddTeamMember(tm *api.TeamMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[tm.TeamID] = append(m.members[tm.TeamID], tm)
}

// GrantPermission grants a named permission to a user.
func (m *MemoryRepository) GrantPermission(userID int64, permission string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions[userID] = append(m.permissions[userID], permission)
}

// RevokePermission removes a named permission from a user.
func (m *MemoryRepository) RevokePermission(userID int64, permission string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perms := m.permissions[userID]
	for i, p := range perms {
		if p == permission {
			m.permissions[userID] = append(perms[:i], perms[i+1:]...)
			return
		}
	}
}

// GetUser returns a user by id.
func (m *MemoryRepository) GetUser(ctx context.Context, id int64) (*api.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return u, nil
}

// GetOrganization returns an organization by id.
func (m *MemoryRepository) GetOrganization(ctx context.Context, id int64) (*api.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return o, nil
}

// GetCase returns a case by id.
func (m *MemoryRepository) GetCase(ctx context.Context, id int64) (*api.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return c, nil
}

// GetTeam returns a team by id.
func (m *MemoryRepository) GetTeam(ctx context.Context, id int64) (*api.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, api.ErrNotFound
	}
	return t, nil
}

// GetTeamMember returns the membership linking userID to teamID.
func (m *MemoryRepository) GetTeamMember(ctx context.Context, teamID, userID int64) (*api.TeamMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tm := range m.members[teamID] {
		if tm.UserID == userID {
			return tm, nil
		}
	}
	return nil, api.ErrNotFound
}

// GetPermissions returns all permission names granted to a user.
func (m *MemoryRepository) GetPermissions(ctx context.Context, userID int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	perms := m.permissions[userID]
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}
