// Package roles answers role questions about a session user: exact
// membership ([HasRole]) and implied membership through a [Policy], where a
// stronger role satisfies checks for the roles it includes.
//
// The default policy mirrors the platform: admin includes moderator and
// premium.
//
// # What this package must NOT do
//
//   - Fetch roles from the API. Roles come from the session user.
//   - Import novels, persist or apiclient.
package roles
