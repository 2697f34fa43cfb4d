package archive

import (
	"bytes"
	"fmt"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// Record describes one entry as laid out in an assembled archive.
type Record struct {
	Path             string
	Method           Method
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64

	// HeaderOffset is where the entry's local file header starts.
	HeaderOffset uint64

	// DataOffset is where the entry's payload starts, after the name and
	// extra field.
	DataOffset uint64

	// ExtraLen is the length of the local header's extra field.
	ExtraLen int
}

// Layout summarizes the directory structures of an archive.
type Layout struct {
	Records         []Record
	DirectoryOffset uint64
	DirectorySize   uint64

	// DirectoryCount is the entry count declared by the end record.
	DirectoryCount int
}

// Inspect parses the end record, central directory and local headers of b.
//
// It cross-checks every central directory record against its local header
// and fails with ErrInvalidArchive on any disagreement in method, CRC or
// sizes. Entry data is not decompressed.
func Inspect(b []byte) (*Layout, error) {
	end, err := findDirectoryEnd(b)
	if err != nil {
		return nil, err
	}

	count := int(le.Uint16(b[end+10:]))
	dirSize := uint64(le.Uint32(b[end+12:]))
	dirOffset := uint64(le.Uint32(b[end+16:]))
	if dirOffset+dirSize != uint64(end) {
		return nil, fmt.Errorf("%w: central directory [%d,%d) does not end at end record %d", ziptype.ErrInvalidArchive, dirOffset, dirOffset+dirSize, end)
	}

	layout := &Layout{
		Records:         make([]Record, 0, count),
		DirectoryOffset: dirOffset,
		DirectorySize:   dirSize,
		DirectoryCount:  count,
	}
	pos := dirOffset
	for range count {
		rec, next, err := readDirectoryRecord(b, pos, uint64(end))
		if err != nil {
			return nil, err
		}
		if err := readLocalHeader(b, &rec, dirOffset); err != nil {
			return nil, err
		}
		layout.Records = append(layout.Records, rec)
		pos = next
	}
	if pos != uint64(end) {
		return nil, fmt.Errorf("%w: %d trailing bytes in central directory", ziptype.ErrInvalidArchive, uint64(end)-pos)
	}
	return layout, nil
}

// CheckAlignment returns ErrMisaligned if any stored entry whose class
// requires alignment does not start on an Alignment boundary.
func CheckAlignment(b []byte) error {
	layout, err := Inspect(b)
	if err != nil {
		return err
	}
	for _, rec := range layout.Records {
		if rec.Method != Store || !Classify(rec.Path).Align {
			continue
		}
		if rec.DataOffset%Alignment != 0 {
			return fmt.Errorf("%w: %s data at offset %d", ziptype.ErrMisaligned, rec.Path, rec.DataOffset)
		}
	}
	return nil
}

func findDirectoryEnd(b []byte) (int, error) {
	if len(b) < directoryEndLen {
		return 0, fmt.Errorf("%w: %d bytes is too short", ziptype.ErrInvalidArchive, len(b))
	}
	sig := le.AppendUint32(nil, directoryEndSignature)
	// The end record may be followed by a comment of up to 65535 bytes.
	lo := max(0, len(b)-directoryEndLen-maxUint16)
	for i := len(b) - directoryEndLen; i >= lo; i-- {
		if !bytes.Equal(b[i:i+4], sig) {
			continue
		}
		commentLen := int(le.Uint16(b[i+20:]))
		if i+directoryEndLen+commentLen == len(b) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: end of central directory not found", ziptype.ErrInvalidArchive)
}

func readDirectoryRecord(b []byte, pos, limit uint64) (Record, uint64, error) {
	if pos+directoryHeaderLen > limit {
		return Record{}, 0, fmt.Errorf("%w: truncated central directory at %d", ziptype.ErrInvalidArchive, pos)
	}
	h := b[pos : pos+directoryHeaderLen]
	if le.Uint32(h) != directoryHeaderSignature {
		return Record{}, 0, fmt.Errorf("%w: bad central directory signature at %d", ziptype.ErrInvalidArchive, pos)
	}
	nameLen := uint64(le.Uint16(h[28:]))
	extraLen := uint64(le.Uint16(h[30:]))
	commentLen := uint64(le.Uint16(h[32:]))
	next := pos + directoryHeaderLen + nameLen + extraLen + commentLen
	if next > limit {
		return Record{}, 0, fmt.Errorf("%w: truncated central directory at %d", ziptype.ErrInvalidArchive, pos)
	}
	nameStart := pos + directoryHeaderLen
	return Record{
		Path:             string(b[nameStart : nameStart+nameLen]),
		Method:           Method(le.Uint16(h[10:])),
		CRC32:            le.Uint32(h[16:]),
		CompressedSize:   uint64(le.Uint32(h[20:])),
		UncompressedSize: uint64(le.Uint32(h[24:])),
		HeaderOffset:     uint64(le.Uint32(h[42:])),
	}, next, nil
}

func readLocalHeader(b []byte, rec *Record, limit uint64) error {
	pos := rec.HeaderOffset
	if pos+fileHeaderLen > limit {
		return fmt.Errorf("%w: %s: local header out of range", ziptype.ErrInvalidArchive, rec.Path)
	}
	h := b[pos : pos+fileHeaderLen]
	if le.Uint32(h) != fileHeaderSignature {
		return fmt.Errorf("%w: %s: bad local header signature", ziptype.ErrInvalidArchive, rec.Path)
	}
	// With a data descriptor (flag bit 3) the local sizes are zero and only the
	// central copy is authoritative.
	if le.Uint16(h[6:])&0x8 == 0 {
		method := Method(le.Uint16(h[8:]))
		crc := le.Uint32(h[14:])
		csize := uint64(le.Uint32(h[18:]))
		usize := uint64(le.Uint32(h[22:]))
		if method != rec.Method || crc != rec.CRC32 || csize != rec.CompressedSize || usize != rec.UncompressedSize {
			return fmt.Errorf("%w: %s: local header disagrees with central directory", ziptype.ErrInvalidArchive, rec.Path)
		}
	}
	rec.ExtraLen = int(le.Uint16(h[28:]))
	nameLen := uint64(le.Uint16(h[26:]))
	rec.DataOffset = pos + fileHeaderLen + nameLen + uint64(rec.ExtraLen) //nolint:gosec // ExtraLen is a uint16
	if rec.DataOffset+rec.CompressedSize > limit {
		return fmt.Errorf("%w: %s: data runs past central directory", ziptype.ErrInvalidArchive, rec.Path)
	}
	return nil
}
