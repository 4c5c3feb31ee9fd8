// Package apiclient is the REST client of the novels platform API.
//
// Every request carries the session's access token as a bearer credential,
// but only while a user is signed in. A 401 response triggers one refresh
// through POST /auth/refresh (the refresh cookie rides in the client's cookie
// jar); on success the new token is stored and the request retried once, on
// failure the session is logged out and [ErrSessionExpired] returned.
//
// # Architecture boundaries
//
// The client talks to the session only through the [Session] interface. It
// does not know how the session is persisted or hydrated.
//
// # What this package must NOT do
//
//   - Log access tokens or request bodies.
//   - Retry a request more than once.
//   - Refresh in response to 401s from the login, register or refresh
//     endpoints.
package apiclient
