package store

import "errors"

var (
	// ErrCorrupt marks a store file whose header matched but whose body
	// cannot be decoded. Callers must not continue with partial state.
	ErrCorrupt = errors.New("store: corrupt file")

	// ErrUnsupportedVersion marks a secret-chat file written by a newer
	// format than this build knows.
	ErrUnsupportedVersion = errors.New("store: unsupported secret chat format version")

	// ErrInvalidRecord marks an in-memory record that cannot be encoded
	// in a form that would load again.
	ErrInvalidRecord = errors.New("store: record cannot be encoded")

	// ErrKeyless marks a chat the server reports active while no key for
	// it is held locally. Such a chat is left as it is.
	ErrKeyless = errors.New("store: secret chat active remotely without a local key")
)
