// Package novels is the client core of the novels reading platform: one
// authenticated session per process, persisted to durable client storage,
// hydrated once at start, and shared by everything that talks to the API.
//
// A [Client] is assembled with [New] and [Builder.Build]. It starts in the
// loading state; [Client.Mount] begins hydration, and readers gate on
// [Client.Done] or a [guard.Guard] so that nothing redirects before the
// stored session has been read.
//
// # Architecture boundaries
//
// The root package wires the pieces and owns configuration, metrics and audit
// dispatch. Session state lives in package session, persistence in persist,
// the hydration lifecycle in hydrate, storage backends under storage, and the
// REST client in apiclient. None of those import this package.
//
// # What this package must NOT do
//
//   - Log or audit access tokens.
//   - Hold any session state outside the session store.
//   - Import the metrics exporters (they import this package).
package novels
