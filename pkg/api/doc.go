// Package api holds the shared domain model: users with a closed role set,
// organizations (the tenant boundary), cases, teams, team memberships, and
// named permission grants.
package api
