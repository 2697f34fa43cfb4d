package archive

import (
	"errors"
	"fmt"

	"github.com/meigma/apkrepack/internal/pathutil"
	"github.com/meigma/apkrepack/internal/ziptype"
)

// Assemble writes entries, in order, as a complete ZIP archive.
//
// Stored entries with Align set get a zero-filled extra field sized so that
// their data starts at a multiple of Alignment. Alignment is measured against
// the data start, so the padding absorbs whatever misalignment the header and
// file name leave behind. Every offset, size and count in the central
// directory and end record is computed here from the bytes actually written.
//
// The same entries in the same order always produce identical bytes.
func Assemble(entries []*Entry) ([]byte, error) {
	total, err := validate(entries)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, total)
	offsets := make([]uint64, len(entries))
	for i, e := range entries {
		offset := uint64(len(out))
		if offset > maxUint32 {
			return nil, fmt.Errorf("%w: local header offset of %s", ziptype.ErrSizeOverflow, e.Path)
		}
		offsets[i] = offset

		pad := 0
		if e.Align && e.Method == Store {
			pad = alignPadding(offset, len(e.Path))
		}
		out = appendLocalHeader(out, e, len(e.Path), pad)
		out = append(out, e.Path...)
		out = append(out, make([]byte, pad)...)
		out = append(out, e.Data...)
	}

	dirOffset := uint64(len(out))
	for i, e := range entries {
		out = appendDirectoryHeader(out, e, len(e.Path), offsets[i])
		out = append(out, e.Path...)
	}
	dirSize := uint64(len(out)) - dirOffset
	if dirOffset > maxUint32 || dirSize > maxUint32 {
		return nil, fmt.Errorf("%w: central directory", ziptype.ErrSizeOverflow)
	}

	out = appendDirectoryEnd(out, len(entries), dirSize, dirOffset)
	return out, nil
}

// validate checks entries against the limits of the 32-bit format and returns
// an upper bound for the assembled size.
func validate(entries []*Entry) (int, error) {
	if len(entries) > maxUint16 {
		return 0, fmt.Errorf("%w: %d entries", ziptype.ErrTooManyEntries, len(entries))
	}

	seen := make(map[string]struct{}, len(entries))
	total := directoryEndLen
	for _, e := range entries {
		if e == nil {
			return 0, errors.New("archive: nil entry")
		}
		if err := pathutil.Check(e.Path); err != nil {
			return 0, err
		}
		if _, ok := seen[e.Path]; ok {
			return 0, fmt.Errorf("%w: %s", ziptype.ErrDuplicateEntry, e.Path)
		}
		seen[e.Path] = struct{}{}

		if len(e.Path) > maxUint16 {
			return 0, fmt.Errorf("%w: name of %.64s...", ziptype.ErrSizeOverflow, e.Path)
		}
		if e.CompressedSize > maxUint32 || e.UncompressedSize > maxUint32 {
			return 0, fmt.Errorf("%w: %s", ziptype.ErrSizeOverflow, e.Path)
		}
		if uint64(len(e.Data)) != e.CompressedSize {
			return 0, fmt.Errorf("archive: %s: payload is %d bytes, header says %d", e.Path, len(e.Data), e.CompressedSize)
		}
		if e.Method != Store && e.Method != Deflate {
			return 0, fmt.Errorf("archive: %s: unsupported method %d", e.Path, e.Method)
		}
		total += fileHeaderLen + Alignment - 1 + directoryHeaderLen + 2*len(e.Path) + len(e.Data)
	}
	return total, nil
}
