package publish

import (
	"errors"
	"fmt"
	"net/http"

	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote/errcode"
)

// Sentinel errors for publish operations.
var (
	// ErrNotFound is returned when no package exists at the reference.
	ErrNotFound = errors.New("publish: not found")

	// ErrInvalidReference is returned when a reference or tag is malformed.
	ErrInvalidReference = errors.New("publish: invalid reference")

	// ErrInvalidManifest is returned when a manifest does not describe a package.
	ErrInvalidManifest = errors.New("publish: invalid package manifest")

	// ErrDigestMismatch is returned when fetched content does not match its descriptor.
	ErrDigestMismatch = errors.New("publish: digest mismatch")

	// ErrTooLarge is returned when a package layer exceeds the configured limit.
	ErrTooLarge = errors.New("publish: package too large")

	// ErrUnauthorized is returned when the registry rejects the credentials.
	ErrUnauthorized = errors.New("publish: unauthorized")
)

// mapError translates ORAS and registry errors into package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, content.ErrMismatchedDigest) || errors.Is(err, content.ErrTrailingData) {
		return fmt.Errorf("%w: %v", ErrDigestMismatch, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}
