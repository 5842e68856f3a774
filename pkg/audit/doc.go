// Package audit provides the durable append-only elevation audit log.
//
// Sinks implement the Logger interface; DBLogger writes to PostgreSQL and
// MultiLogger fans out to several sinks. Writes from the request path are
// fire-and-forget: the elevation protocol starts them through pkg/async and
// never awaits them, so an unavailable sink can delay nothing and deny
// nothing. RetentionSweeper prunes old entries on a cron schedule.
package audit
