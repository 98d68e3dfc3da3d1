package storeauth

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a store that was started before.
	ErrAlreadyStarted = errors.New("session store already started")
	// ErrDisposed is returned by Start after Dispose.
	ErrDisposed = errors.New("session store disposed")
	// ErrMissingProvider is returned by Build without an auth provider.
	ErrMissingProvider = errors.New("auth provider required")
	// ErrMissingProfileStore is returned by Build without a profile store.
	ErrMissingProfileStore = errors.New("profile store required")
	// ErrInvalidConfig wraps Config.Validate failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
)
