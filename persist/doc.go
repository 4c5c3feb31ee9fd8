// Package persist connects a session.Store to durable client storage.
//
// It owns the two halves of persistence:
//
//   - serialize-on-mutate: [Persister.Persist] is the store's write hook and
//     writes the encoded record under one namespaced key;
//   - deserialize-on-start: [Persister.Rehydrate] reads that key once per
//     process and restores it into the store.
//
// Rehydrate always completes. A missing key, a corrupt record, a backend
// error or a panicking backend all end in the hydrated state with the default
// empty session, and completion listeners fire exactly once.
//
// # What this package must NOT do
//
//   - Change IsLoading. That transition belongs to the hydrate package.
//   - Read storage more than once per Persister.
package persist
