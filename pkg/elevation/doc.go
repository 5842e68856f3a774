// Package elevation implements the SuperAdmin privilege-elevation protocol.
//
// A global admin may elevate one request by presenting a shared secret and,
// when anti-replay is enabled, a single-use token. Attempts are rate limited
// per client address in the shared Redis store. A grant sets a strictly
// request-scoped flag that short-circuits every subsequent authorization
// check in that request, and emits one audit event. Every denial inside the
// protocol falls back to the ordinary evaluators; it never rejects the
// request itself.
package elevation
