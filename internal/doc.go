// Package internal contains helpers that are private to the novels module.
//
// # Sub-packages
//
//   - audit: async session event dispatch (Dispatcher + Sink implementations)
//   - tui: terminal shell: mounts the client and gates its view on hydration
//
// # What this package must NOT do
//
//   - Export types that appear in the public novels API.
//   - Be imported by any package outside the novels module.
package internal
