// Package storage defines durable client storage: a small key/value contract
// used to keep the persisted session across process restarts.
//
// Backends live in sub-packages:
//
//   - memory: process-local, for tests and ephemeral shells.
//   - file: one JSON file per key under a directory (the default).
//   - redisstore: a Redis key, for clients that share state across hosts.
//   - sqlitestore: a single-table SQLite database.
//   - sealed: wraps any backend and encrypts values with age.
//
// # What this package must NOT do
//
//   - Interpret stored values. Encoding belongs to the session package.
//   - Retry. Callers decide what a failed read or write means.
package storage
