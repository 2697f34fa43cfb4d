package archive

import (
	"encoding/binary"
	"math"
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	fileHeaderLen            = 30
	directoryHeaderLen       = 46
	directoryEndLen          = 22

	// Alignment is the boundary stored entries that require alignment start on.
	Alignment = 4

	versionMadeBy  = 20
	versionStore   = 10
	versionDeflate = 20

	// 1981-01-01 01:01:02 in MS-DOS format, shared by every entry.
	dosTime = 1<<11 | 1<<5 | 1
	dosDate = (1981-1980)<<9 | 1<<5 | 1

	maxUint16 = math.MaxUint16
	maxUint32 = math.MaxUint32
)

var le = binary.LittleEndian

func versionNeeded(m Method) uint16 {
	if m == Deflate {
		return versionDeflate
	}
	return versionStore
}

// appendLocalHeader appends the fixed 30-byte local file header block.
func appendLocalHeader(b []byte, e *Entry, nameLen, extraLen int) []byte {
	b = le.AppendUint32(b, fileHeaderSignature)
	b = le.AppendUint16(b, versionNeeded(e.Method))
	b = le.AppendUint16(b, 0) // flags
	b = le.AppendUint16(b, uint16(e.Method))
	b = le.AppendUint16(b, dosTime)
	b = le.AppendUint16(b, dosDate)
	b = le.AppendUint32(b, e.CRC32)
	b = le.AppendUint32(b, uint32(e.CompressedSize))   //nolint:gosec // checked by validate
	b = le.AppendUint32(b, uint32(e.UncompressedSize)) //nolint:gosec // checked by validate
	b = le.AppendUint16(b, uint16(nameLen))            //nolint:gosec // checked by validate
	b = le.AppendUint16(b, uint16(extraLen))           //nolint:gosec // at most Alignment-1
	return b
}

// appendDirectoryHeader appends the fixed 46-byte central directory block.
func appendDirectoryHeader(b []byte, e *Entry, nameLen int, offset uint64) []byte {
	b = le.AppendUint32(b, directoryHeaderSignature)
	b = le.AppendUint16(b, versionMadeBy)
	b = le.AppendUint16(b, versionNeeded(e.Method))
	b = le.AppendUint16(b, 0) // flags
	b = le.AppendUint16(b, uint16(e.Method))
	b = le.AppendUint16(b, dosTime)
	b = le.AppendUint16(b, dosDate)
	b = le.AppendUint32(b, e.CRC32)
	b = le.AppendUint32(b, uint32(e.CompressedSize))   //nolint:gosec // checked by validate
	b = le.AppendUint32(b, uint32(e.UncompressedSize)) //nolint:gosec // checked by validate
	b = le.AppendUint16(b, uint16(nameLen))            //nolint:gosec // checked by validate
	b = le.AppendUint16(b, 0)                          // extra length
	b = le.AppendUint16(b, 0)                          // comment length
	b = le.AppendUint16(b, 0)                          // disk number start
	b = le.AppendUint16(b, 0)                          // internal attributes
	b = le.AppendUint32(b, 0)                          // external attributes
	b = le.AppendUint32(b, uint32(offset))             //nolint:gosec // checked by caller
	return b
}

// appendDirectoryEnd appends the 22-byte end of central directory record.
func appendDirectoryEnd(b []byte, count int, size, offset uint64) []byte {
	b = le.AppendUint32(b, directoryEndSignature)
	b = le.AppendUint16(b, 0)              // this disk
	b = le.AppendUint16(b, 0)              // disk with central directory
	b = le.AppendUint16(b, uint16(count))  //nolint:gosec // checked by validate
	b = le.AppendUint16(b, uint16(count))  //nolint:gosec // checked by validate
	b = le.AppendUint32(b, uint32(size))   //nolint:gosec // checked by caller
	b = le.AppendUint32(b, uint32(offset)) //nolint:gosec // checked by caller
	b = le.AppendUint16(b, 0)              // comment length
	return b
}

// alignPadding returns the number of zero bytes needed after a local header
// starting at offset so that the entry data begins on an Alignment boundary.
func alignPadding(offset uint64, nameLen int) int {
	dataStart := offset + fileHeaderLen + uint64(nameLen)     //nolint:gosec // nameLen is non-negative
	return int((Alignment - dataStart%Alignment) % Alignment) //nolint:gosec // result < Alignment
}
