package apkrepack

import "github.com/meigma/apkrepack/internal/ziptype"

// Sentinel errors re-exported from internal/ziptype.
var (
	// ErrInvalidArchive is returned when input bytes do not parse as a ZIP container.
	ErrInvalidArchive = ziptype.ErrInvalidArchive

	// ErrCompression is returned when the deflate compressor fails.
	ErrCompression = ziptype.ErrCompression

	// ErrSigning is returned when key generation, digesting or signing fails.
	ErrSigning = ziptype.ErrSigning

	// ErrSizeOverflow is returned when a size or offset does not fit the 32-bit ZIP fields.
	ErrSizeOverflow = ziptype.ErrSizeOverflow

	// ErrTooManyEntries is returned when an archive would exceed 65535 entries.
	ErrTooManyEntries = ziptype.ErrTooManyEntries

	// ErrInvalidPath is returned for entry names that are empty, absolute, escape the
	// archive root or contain control characters.
	ErrInvalidPath = ziptype.ErrInvalidPath

	// ErrDuplicateEntry is returned when two entries share the same path.
	ErrDuplicateEntry = ziptype.ErrDuplicateEntry

	// ErrMisaligned is returned when an assembled archive breaks the alignment invariant.
	ErrMisaligned = ziptype.ErrMisaligned

	// ErrVerification is returned when a signed archive fails verification.
	ErrVerification = ziptype.ErrVerification

	// ErrNoIdentity is returned when WithRequireIdentity is set and no identity was given.
	ErrNoIdentity = ziptype.ErrNoIdentity
)
