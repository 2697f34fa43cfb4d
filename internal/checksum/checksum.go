// Package checksum computes the CRC-32 values stored in ZIP headers.
//
// The lookup table is built on first use and never written again, so it can
// be shared by any number of concurrent builds.
package checksum

import (
	"hash/crc32"
	"sync"
)

// table is the frozen IEEE polynomial table.
var table = sync.OnceValue(func() *crc32.Table {
	return crc32.MakeTable(crc32.IEEE)
})

// Table returns the shared lookup table. Callers must not modify it.
func Table() *crc32.Table {
	return table()
}

// Checksum returns the CRC-32 (IEEE) of b.
func Checksum(b []byte) uint32 {
	return crc32.Checksum(b, table())
}

// Update returns the result of adding b to crc.
func Update(crc uint32, b []byte) uint32 {
	return crc32.Update(crc, table(), b)
}
