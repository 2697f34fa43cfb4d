package ziptype

import "errors"

// Sentinel errors for repackaging operations.
var (
	// ErrInvalidArchive is returned when input bytes do not parse as a ZIP container.
	ErrInvalidArchive = errors.New("apkrepack: invalid archive")

	// ErrCompression is returned when the deflate compressor fails.
	ErrCompression = errors.New("apkrepack: compression failed")

	// ErrSigning is returned when key generation, digesting or signing fails.
	ErrSigning = errors.New("apkrepack: signing failed")

	// ErrSizeOverflow is returned when a size or offset does not fit the 32-bit ZIP fields.
	ErrSizeOverflow = errors.New("apkrepack: size overflow")

	// ErrTooManyEntries is returned when an archive would exceed 65535 entries.
	ErrTooManyEntries = errors.New("apkrepack: too many entries")

	// ErrInvalidPath is returned when an entry name is empty, absolute or escapes the archive root.
	ErrInvalidPath = errors.New("apkrepack: invalid entry path")

	// ErrDuplicateEntry is returned when two entries share the same path.
	ErrDuplicateEntry = errors.New("apkrepack: duplicate entry")

	// ErrMisaligned is returned when a stored entry that requires alignment
	// does not start on a 4-byte boundary.
	ErrMisaligned = errors.New("apkrepack: entry misaligned")

	// ErrVerification is returned when a signed archive fails verification.
	ErrVerification = errors.New("apkrepack: signature verification failed")

	// ErrNoIdentity is returned when a persisted signing identity is required but missing.
	ErrNoIdentity = errors.New("apkrepack: no signing identity")
)
