// Package archive builds and inspects Android package archives.
//
// An archive is a plain ZIP container with two extra constraints imposed by
// the platform: entries the runtime maps directly from the file (the resource
// table and native libraries) must be stored uncompressed, and their data must
// begin at an offset divisible by 4. [Assemble] writes the local headers,
// central directory and end-of-central-directory record itself so that it can
// place that padding exactly; reading is delegated to
// github.com/klauspost/compress/zip.
//
// Output is byte-reproducible: every entry carries the same fixed timestamp
// and the entry order is the caller's.
package archive
