// Package publish stores signed packages in OCI registries.
//
// A package is pushed as an OCI 1.1 artifact: a single layer holding the
// archive bytes, an empty config and an artifact type that identifies the
// manifest as a repackaged APK. Any oras.Target works, so the same code
// pushes to a remote repository, an OCI layout on disk or an in-memory
// store.
package publish
