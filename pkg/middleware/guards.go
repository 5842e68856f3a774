package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/authz"
	"github.com/openreach/openreach/pkg/storage"
)

// Guards builds per-operation authorization middleware. Each guard surfaces
// the error taxonomy in order: 401 for a missing identity, 404 for a
// missing resource (existence is decided before permission logic runs), 403
// for an ordinary deny, 500 for an infrastructure fault.
type Guards struct {
	roles  *authz.RoleEvaluator
	perms  *authz.PermissionEvaluator
	tenant *authz.TenantGuard
	repo   storage.Repository
}

// NewGuards creates the guard middleware factory.
func NewGuards(roles *authz.RoleEvaluator, perms *authz.PermissionEvaluator, tenant *authz.TenantGuard, repo storage.Repository) *Guards {
	return &Guards{roles: roles, perms: perms, tenant: tenant, repo: repo}
}

type caseCheck func(ctx context.Context, userID, caseID int64) (bool, error)

// requireCase runs an existence check on {case_id} and then the given
// case-scoped authorization check.
func (g *Guards) requireCase(check caseCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r)
			if actor == nil {
				unauthorizedResponse(w, "authentication required")
				return
			}

			caseID, ok := pathID(r, "case_id")
			if !ok {
				http.Error(w, "invalid case id", http.StatusBadRequest)
				return
			}

			if _, err := g.repo.GetCase(r.Context(), caseID); err != nil {
				if errors.Is(err, api.ErrNotFound) {
					notFoundResponse(w, "case not found")
					return
				}
				internalErrorResponse(w)
				return
			}

			allowed, err := check(r.Context(), actor.ID, caseID)
			if err != nil {
				internalErrorResponse(w)
				return
			}
			if !allowed {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireCaseView guards case read endpoints.
func (g *Guards) RequireCaseView() func(http.Handler) http.Handler {
	return g.requireCase(g.roles.CanViewCase)
}

// RequireCaseEdit guards case mutation endpoints.
func (g *Guards) RequireCaseEdit() func(http.Handler) http.Handler {
	return g.requireCase(g.roles.CanEditCase)
}

// RequireCaseAssign guards case assignment endpoints.
func (g *Guards) RequireCaseAssign() func(http.Handler) http.Handler {
	return g.requireCase(g.roles.CanAssignCase)
}

// RequireCaseClose guards case closing endpoints.
func (g *Guards) RequireCaseClose() func(http.Handler) http.Handler {
	return g.requireCase(g.roles.CanCloseCase)
}

// RequireTeamManage guards team management endpoints.
func (g *Guards) RequireTeamManage() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r)
			if actor == nil {
				unauthorizedResponse(w, "authentication required")
				return
			}

			teamID, ok := pathID(r, "team_id")
			if !ok {
				http.Error(w, "invalid team id", http.StatusBadRequest)
				return
			}

			if _, err := g.repo.GetTeam(r.Context(), teamID); err != nil {
				if errors.Is(err, api.ErrNotFound) {
					notFoundResponse(w, "team not found")
					return
				}
				internalErrorResponse(w)
				return
			}

			allowed, err := g.roles.CanManageTeam(r.Context(), actor.ID, teamID)
			if err != nil {
				internalErrorResponse(w)
				return
			}
			if !allowed {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type orgCheck func(ctx context.Context, userID, orgID int64) (bool, error)

// requireOrg runs an organization-scoped check against {org_id}, with the
// tenant guard as a second fence behind the operation check.
func (g *Guards) requireOrg(check orgCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r)
			if actor == nil {
				unauthorizedResponse(w, "authentication required")
				return
			}

			orgID, ok := pathID(r, "org_id")
			if !ok {
				http.Error(w, "invalid organization id", http.StatusBadRequest)
				return
			}

			if _, err := g.repo.GetOrganization(r.Context(), orgID); err != nil {
				if errors.Is(err, api.ErrNotFound) {
					notFoundResponse(w, "organization not found")
					return
				}
				internalErrorResponse(w)
				return
			}

			allowed, err := check(r.Context(), actor.ID, orgID)
			if err != nil {
				internalErrorResponse(w)
				return
			}
			if allowed {
				allowed, err = g.tenant.VerifyOrganizationAccess(r.Context(), actor.ID, orgID)
				if err != nil {
					internalErrorResponse(w)
					return
				}
			}
			if !allowed {
				forbiddenResponse(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireStatisticsView guards organization statistics endpoints.
func (g *Guards) RequireStatisticsView() func(http.Handler) http.Handler {
	return g.requireOrg(g.roles.CanViewStatistics)
}

// RequireSubUserCreate guards sub-account creation endpoints.
func (g *Guards) RequireSubUserCreate() func(http.Handler) http.Handler {
	return g.requireOrg(g.roles.CanCreateSubUsers)
}

// RequireServicePointManage guards service point endpoints.
func (g *Guards) RequireServicePointManage() func(http.Handler) http.Handler {
	return g.requireOrg(g.roles.CanManageServicePoint)
}

// RequirePermission guards an endpoint behind one named permission grant.
func (g *Guards) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r)
			if actor == nil {
				unauthorizedResponse(w, "authentication required")
				return
			}

			allowed, err := g.perms.HasPermission(r.Context(), actor.ID, name)
			if err != nil {
				internalErrorResponse(w)
				return
			}
			if !allowed {
				forbiddenResponse(w, "missing permission: "+name)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAllPermissions guards an endpoint behind a set of named grants and
// names the first missing one in the response.
func (g *Guards) RequireAllPermissions(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r)
			if actor == nil {
				unauthorizedResponse(w, "authentication required")
				return
			}

			allowed, missing, err := g.perms.HasAll(r.Context(), actor.ID, names...)
			if err != nil {
				internalErrorResponse(w)
				return
			}
			if !allowed {
				forbiddenResponse(w, "missing permission: "+missing)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func notFoundResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func internalErrorResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"error":"internal error"}`))
}
