// Package signing implements the JAR signature scheme (APK signature scheme
// v1) over an archive's entry set.
//
// Signing produces three META-INF entries:
//
//   - MANIFEST.MF: a SHA-256 digest of every entry's uncompressed bytes
//   - <NAME>.SF: a digest of the whole manifest and of each manifest section
//   - <NAME>.RSA or <NAME>.EC: a detached PKCS#7 signature over the exact
//     bytes of the .SF file, embedding the signer certificate
//
// All text uses CRLF line endings, and lines longer than 72 bytes are
// continued on the next line after a single space. Digests are computed
// over these exact bytes, so the formatting is part of the signature.
package signing
