// Package integration contains end-to-end tests that publish packages to a
// real OCI registry.
//
// Tests require Docker and run behind the integration build tag:
//
//	go test -tags integration ./integration/...
//
// Set SKIP_DOCKER_TESTS=1 to skip them where Docker is unavailable.
package integration
