// Package hydrate runs the one-time startup sequence that restores the
// persisted session and ends the loading window.
//
// # State machine
//
//	NotStarted --Start--> Rehydrating --source finished--> Hydrated
//
// [Controller.Start] is meant to be called when the root UI shell mounts, not
// at package init. It registers a completion listener on the [Source],
// triggers the read, and then polls [Source.HasHydrated]. Whichever of the
// listener or the poll observes completion first moves the controller to
// Hydrated and calls SetLoading(false) on the target exactly once. Relying on
// the listener alone misses reads that finish before the listener exists.
//
// # What this package must NOT do
//
//   - Read or decode storage itself.
//   - Transition out of Hydrated. A new process gets a new Controller.
package hydrate
