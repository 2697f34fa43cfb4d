// Package ziptype defines shared types used across the apkrepack packages.
// This avoids circular imports between the root package, archive, modify and signing.
package ziptype

// Method identifies how an entry's payload is stored in the archive.
// The values are the ZIP compression method numbers written to the headers.
type Method uint16

const (
	MethodStore   Method = 0
	MethodDeflate Method = 8
)

func (m Method) String() string {
	switch m {
	case MethodStore:
		return "store"
	case MethodDeflate:
		return "deflate"
	default:
		return "unknown"
	}
}
