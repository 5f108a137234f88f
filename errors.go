package dsse

import "errors"

// Error kinds surfaced by the core. Callers should compare against these
// with errors.Is; backends and the client wrap them with
// fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrAuth indicates AEAD verification failed: corruption or forgery.
	ErrAuth = errors.New("dsse: authentication failed")

	// ErrNotFound indicates the server has no row for the requested key.
	ErrNotFound = errors.New("dsse: not found")

	// ErrCollision indicates a put attempted to overwrite an existing row.
	// This is a randomness failure; it must not be retried with the same key.
	ErrCollision = errors.New("dsse: address collision")

	// ErrEntropy indicates the random source is unavailable.
	ErrEntropy = errors.New("dsse: entropy source unavailable")

	// ErrState indicates local client state is unreadable or malformed.
	ErrState = errors.New("dsse: client state unreadable")

	// ErrIO indicates a transient transport or storage failure. Read
	// operations may be retried; writes must not be.
	ErrIO = errors.New("dsse: transient I/O failure")

	// ErrChainBroken indicates a chain walk hit a missing link.
	ErrChainBroken = errors.New("dsse: chain broken")

	// ErrChainCorrupt indicates a chain walk hit a node that failed to
	// authenticate.
	ErrChainCorrupt = errors.New("dsse: chain corrupt")
)
