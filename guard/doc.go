// Package guard gates views on the session.
//
// A guard evaluates a [Requirement] against a session snapshot and yields a
// [Decision]. While the session is loading the decision is always [Pending]:
// callers render nothing and never redirect. Only after hydration completes
// does a guard report [Unauthenticated] or [Forbidden].
//
// # Guards
//
//   - [New] with a custom [Requirement].
//   - [RequireAuthenticated], [RequireAdmin], [RequireModerator],
//     [RequirePremium] presets.
//
// # Architecture boundaries
//
// This package reads session state and subscribes to changes. It does NOT
// mutate the session or perform navigation; the caller maps decisions to
// views.
//
// # What this package must NOT do
//
//   - Decide before the session has hydrated.
//   - Read the access token (role checks use the user only).
package guard
