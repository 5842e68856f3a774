// Package storage provides the data-access layer: the read-only Repository
// facade the evaluators depend on, a SQL implementation, an in-memory
// implementation for tests, and the Redis client exposing the atomic
// primitives (windowed increment, set-if-absent) the elevation protocol
// requires for correctness under horizontal scaling.
package storage
