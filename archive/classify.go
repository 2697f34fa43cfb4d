package archive

import (
	"path"
	"strings"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// Method aliases ziptype.Method.
type Method = ziptype.Method

// Storage methods.
const (
	Store   = ziptype.MethodStore
	Deflate = ziptype.MethodDeflate
)

// MetadataDir is the directory reserved for signing metadata.
const MetadataDir = "META-INF/"

// ResourceTable is the compiled resource table, mapped directly by the runtime.
const ResourceTable = "resources.arsc"

// Class is the storage policy for a single archive path.
type Class struct {
	// Method is the preferred storage method. Deflate may still fall back to
	// Store when compression does not help.
	Method Method

	// Align reports whether the entry's data must start on a 4-byte boundary
	// when it ends up stored.
	Align bool
}

// SkipCompressionFunc returns true when a path should be stored uncompressed.
// It is called once per entry and should be inexpensive.
type SkipCompressionFunc func(path string) bool

// Classify returns the storage policy for p. Additional predicates can force
// more paths to be stored; they never affect alignment.
func Classify(p string, skip ...SkipCompressionFunc) Class {
	switch {
	case IsSigningMetadata(p):
		return Class{Method: Store}
	case p == ResourceTable, IsNativeLibrary(p):
		return Class{Method: Store, Align: true}
	case DefaultSkipCompression(p):
		return Class{Method: Store, Align: true}
	}
	for _, fn := range skip {
		if fn != nil && fn(p) {
			return Class{Method: Store, Align: true}
		}
	}
	return Class{Method: Deflate, Align: true}
}

// InMetadataDir reports whether p lives under META-INF/.
func InMetadataDir(p string) bool {
	return strings.HasPrefix(p, MetadataDir)
}

// IsSigningMetadata reports whether p is one of the JAR signing files:
// the manifest, a signature file or a signature block.
func IsSigningMetadata(p string) bool {
	if !InMetadataDir(p) {
		return false
	}
	name := strings.TrimPrefix(p, MetadataDir)
	if strings.Contains(name, "/") {
		return false
	}
	if name == "MANIFEST.MF" || strings.HasPrefix(name, "SIG-") {
		return true
	}
	switch strings.ToUpper(path.Ext(name)) {
	case ".SF", ".RSA", ".DSA", ".EC":
		return true
	}
	return false
}

// IsNativeLibrary reports whether p is a shared library under lib/.
func IsNativeLibrary(p string) bool {
	return strings.HasPrefix(p, "lib/") && strings.HasSuffix(p, ".so")
}

// DefaultSkipCompression reports whether p has an extension whose content is
// already compressed.
func DefaultSkipCompression(p string) bool {
	_, ok := storedExts[strings.ToLower(path.Ext(p))]
	return ok
}

var storedExts = map[string]struct{}{
	".3g2":  {},
	".3gp":  {},
	".aac":  {},
	".amr":  {},
	".avif": {},
	".flac": {},
	".gif":  {},
	".heic": {},
	".imy":  {},
	".jet":  {},
	".jpeg": {},
	".jpg":  {},
	".m4a":  {},
	".m4v":  {},
	".mid":  {},
	".midi": {},
	".mkv":  {},
	".mp2":  {},
	".mp3":  {},
	".mp4":  {},
	".mpeg": {},
	".mpg":  {},
	".ogg":  {},
	".opus": {},
	".png":  {},
	".smf":  {},
	".wav":  {},
	".webm": {},
	".webp": {},
	".wma":  {},
	".wmv":  {},
	".xmf":  {},
	".zip":  {},
}
