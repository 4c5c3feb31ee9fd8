// Package session holds the client-side authentication state of one process
// and the persisted record format used to restore it after a restart.
//
// # Store
//
// [Store] is the single Session of a client process. It starts empty with
// IsLoading set and is mutated only through its actions ([Store.SetUser],
// [Store.SetAccessToken], [Store.Login], [Store.Logout], [Store.SetLoading]
// and, during hydration only, [Store.Restore]). Every action replaces the
// affected fields atomically relative to [Store.Snapshot] readers.
//
// # Persistence
//
// The store does not talk to storage. A [Persister] attached with
// [Store.SetPersister] receives the persisted subset (user, access token,
// authenticated flag) after every action that changes it and before
// subscribers are notified. IsLoading is never part of that subset.
//
// # What this package must NOT do
//
//   - Perform storage or network I/O.
//   - Import novels, persist, hydrate or apiclient (no upward imports).
//   - Expose the access token through anything other than [Snapshot].
package session
