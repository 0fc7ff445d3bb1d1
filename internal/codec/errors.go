package codec

import "errors"

var (
	// ErrAbsent means the input is empty, shorter than a header, or carries
	// a different magic number.
	ErrAbsent = errors.New("codec: absent or foreign data")

	// ErrCorrupt means the header matched but the payload is truncated.
	ErrCorrupt = errors.New("codec: truncated record")

	// ErrLength means a length prefix is outside its allowed range.
	ErrLength = errors.New("codec: length out of bounds")
)
