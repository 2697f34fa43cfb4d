package publish

// Media types for published packages.
const (
	// MediaTypeAPK is the layer media type for the package archive.
	MediaTypeAPK = "application/vnd.android.package-archive"

	// ArtifactType identifies manifests produced by Push.
	ArtifactType = "application/vnd.meigma.apkrepack.apk.v1"
)

// Annotation keys written on package manifests.
const (
	// AnnotationPackageSize records the archive size in bytes.
	AnnotationPackageSize = "dev.meigma.apkrepack.size"

	// AnnotationSigner records the subject of the signing certificate.
	AnnotationSigner = "dev.meigma.apkrepack.signer"
)
