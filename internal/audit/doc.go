// Package audit relays session lifecycle events to a sink off the caller's
// goroutine.
//
// # Components
//
//   - [Event]: one session lifecycle record (login, logout, refresh,
//     hydration outcome).
//   - [Sink]: event consumer. Channel, JSON-lines, zap and no-op sinks are
//     provided.
//   - [Dispatcher]: buffered relay that either drops or blocks when full.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the client does.
//   - Record access tokens.
//   - Import the root package or any sibling internal package.
package audit
