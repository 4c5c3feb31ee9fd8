// Package token inspects access tokens on the client side.
//
// The client never verifies signatures: it holds no keys, and the API is the
// authority. Inspection only reads registered claims (exp, iat, sub) so the
// REST client can refresh an expired token before sending it. Opaque tokens
// are valid; they simply have no inspectable expiry.
//
// # What this package must NOT do
//
//   - Treat inspected claims as trusted for authorization.
//   - Access storage or the network.
package token
