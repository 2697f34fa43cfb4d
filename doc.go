// Package apkrepack rebuilds Android application packages.
//
// A [Repackager] takes either an existing package plus a set of replacement
// files ([Repackager.Modify]) or a complete file set ([Repackager.Build]) and
// produces a signed archive whose stored entries are 4-byte aligned, ready
// to install without a separate zipalign step.
//
// Each build assembles the archive twice: once unsigned, so the signer can
// digest the exact entry content, and once more with the JAR signing
// metadata appended under META-INF/.
//
// # Quick Start
//
// Replace a branding asset in an existing package:
//
//	r, err := apkrepack.New(apkrepack.WithIdentity(id))
//	if err != nil {
//	    return err
//	}
//	signed, err := r.Modify(ctx, original, map[string][]byte{
//	    "assets/branding/logo.png": logo,
//	})
//
// Check the result:
//
//	if _, err := apkrepack.Verify(signed); err != nil {
//	    return err
//	}
//
// # Signing identities
//
// Without [WithIdentity], every build generates a throwaway key and
// certificate and logs a warning. Devices reject upgrades signed by a
// different certificate, so production builds should load a persisted
// identity with [LoadIdentity] and may pass [WithRequireIdentity] to make
// its absence an error.
package apkrepack
