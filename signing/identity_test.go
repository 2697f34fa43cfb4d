package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/apkrepack/internal/ziptype"
)

func TestGenerateIdentity_SelfSigned(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := GenerateIdentity(
		WithKeyType(KeyECDSA),
		WithCommonName("merchant build"),
		WithValidity(24*time.Hour),
		WithNow(func() time.Time { return now }),
	)
	require.NoError(t, err)

	cert := id.Certificate
	assert.Equal(t, "merchant build", cert.Subject.CommonName)
	assert.Equal(t, cert.Subject.String(), cert.Issuer.String())
	assert.True(t, now.Add(-time.Hour).Equal(cert.NotBefore), cert.NotBefore)
	assert.True(t, now.Add(24*time.Hour).Equal(cert.NotAfter), cert.NotAfter)
	require.NoError(t, cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature))
	assert.False(t, cert.IsCA)
	require.NoError(t, id.Validate())
}

func TestGenerateIdentity_FreshPerCall(t *testing.T) {
	t.Parallel()

	a, err := GenerateIdentity(WithKeyType(KeyECDSA))
	require.NoError(t, err)
	b, err := GenerateIdentity(WithKeyType(KeyECDSA))
	require.NoError(t, err)
	assert.NotEqual(t, a.Certificate.Raw, b.Certificate.Raw)
}

func TestLoadIdentity_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, kt := range []KeyType{KeyRSA, KeyECDSA} {
		t.Run(kt.String(), func(t *testing.T) {
			t.Parallel()

			var id *Identity
			if kt == KeyRSA {
				id = identity(t)
			} else {
				var err error
				id, err = GenerateIdentity(WithKeyType(kt))
				require.NoError(t, err)
			}

			certPEM, keyPEM, err := id.EncodePEM()
			require.NoError(t, err)

			loaded, err := LoadIdentity(certPEM, keyPEM)
			require.NoError(t, err)
			assert.Equal(t, id.Certificate.Raw, loaded.Certificate.Raw)

			wantExt, err := id.BlockExtension()
			require.NoError(t, err)
			gotExt, err := loaded.BlockExtension()
			require.NoError(t, err)
			assert.Equal(t, wantExt, gotExt)
		})
	}
}

func TestLoadIdentity_Mismatch(t *testing.T) {
	t.Parallel()

	a, err := GenerateIdentity(WithKeyType(KeyECDSA))
	require.NoError(t, err)
	b, err := GenerateIdentity(WithKeyType(KeyECDSA))
	require.NoError(t, err)

	certPEM, _, err := a.EncodePEM()
	require.NoError(t, err)
	_, keyPEM, err := b.EncodePEM()
	require.NoError(t, err)

	_, err = LoadIdentity(certPEM, keyPEM)
	require.ErrorIs(t, err, ziptype.ErrSigning)
}

func TestLoadIdentity_Garbage(t *testing.T) {
	t.Parallel()

	_, err := LoadIdentity([]byte("nope"), []byte("nope"))
	require.ErrorIs(t, err, ziptype.ErrSigning)
}

func TestIdentity_ValidateNil(t *testing.T) {
	t.Parallel()

	var id *Identity
	require.ErrorIs(t, id.Validate(), ziptype.ErrNoIdentity)
}
