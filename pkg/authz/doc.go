// Package authz implements the layered access-control evaluators: role- and
// resource-relationship checks (RoleEvaluator), named-permission grants
// (PermissionEvaluator), and the tenant boundary (TenantGuard).
//
// An elevated request context (see pkg/elevation) short-circuits every
// evaluator to allow for the remainder of that request. Otherwise checks
// never consult client-supplied organization ids for resource-scoped
// operations; the scope is re-derived from the resource itself.
package authz
