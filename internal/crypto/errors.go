package crypto

import "errors"

var (
	// ErrUnavailable means the underlying cryptographic provider failed.
	// Callers degrade (encryption off) instead of aborting startup.
	ErrUnavailable = errors.New("crypto provider unavailable")

	// ErrNoRoomKey means encrypt/decrypt was called for a room whose key
	// was never established on this replica.
	ErrNoRoomKey = errors.New("no key established for room")

	// ErrAuthentication means the AEAD tag check failed: wrong key,
	// corrupted envelope, or a message produced by another replica's
	// independently generated room key.
	ErrAuthentication = errors.New("message authentication failed")
)
