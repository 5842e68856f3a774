// Package middleware provides the HTTP request pipeline for the
// authorization core: request ID stamping, identity resolution, privilege
// elevation, and per-operation authorization guards.
//
// The intended chain order is RequestID, Identity, Elevation, then the
// route-specific guard. Elevation must run after Identity (it needs the
// resolved actor) and before any guard (guards honor the elevation flag
// through the evaluators).
package middleware
