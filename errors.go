package novels

import "errors"

var (
	// ErrClientClosed is returned by Client operations after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrStorageOpen wraps failures opening the configured storage backend.
	ErrStorageOpen = errors.New("open storage")
	// ErrNotSignedIn is returned by operations that need a signed-in user.
	ErrNotSignedIn = errors.New("not signed in")
)
