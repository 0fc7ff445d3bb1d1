// Package codec reads and writes the fixed-layout binary records shared by
// the state stores.
//
// Every file starts with a 4-byte magic number. Integers are little-endian,
// byte strings are prefixed with a 32-bit length. A Reader distinguishes a
// file that is missing its header (ErrAbsent, recoverable) from one whose
// payload ends early or carries an impossible length (ErrCorrupt, fatal).
package codec
