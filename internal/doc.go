// Package internal documents the agenda server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, page rendering, and routing
// - domain: users and events services with their repository interfaces
// - session: cookie sessions and flash messages
// - storage: SQLite and Postgres repositories with embedded migrations
// - auth, config, metrics, telemetry, sanitize, validation: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
