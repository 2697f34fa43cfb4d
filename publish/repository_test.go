package publish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/registry/remote/auth"
)

func TestNewRepository(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository("localhost:5000/acme/merchant", WithPlainHTTP(true))
	require.NoError(t, err)
	assert.True(t, repo.PlainHTTP)
	assert.Equal(t, "localhost:5000", repo.Reference.Registry)
	assert.Equal(t, "acme/merchant", repo.Reference.Repository)

	client, ok := repo.Client.(*auth.Client)
	require.True(t, ok)
	assert.Equal(t, DefaultUserAgent, client.Header.Get("User-Agent"))
}

func TestNewRepository_InvalidReference(t *testing.T) {
	t.Parallel()

	_, err := NewRepository("not a reference")
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestNewRepository_CredentialLookup(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository("registry.example.com/acme/app",
		WithStaticCredentials("registry.example.com", "user", "pass"),
		WithUserAgent("test/1"),
	)
	require.NoError(t, err)

	client, ok := repo.Client.(*auth.Client)
	require.True(t, ok)
	assert.Equal(t, "test/1", client.Header.Get("User-Agent"))

	cred, err := client.Credential(context.Background(), "registry.example.com")
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Username)
}

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := StaticCredentials("https://registry.example.com/v2/", "user", "pass")

	tests := []struct {
		name   string
		server string
		want   auth.Credential
	}{
		{name: "matching host", server: "registry.example.com", want: auth.Credential{Username: "user", Password: "pass"}},
		{name: "other host", server: "other.example.com", want: auth.EmptyCredential},
		{name: "port differs", server: "registry.example.com:5000", want: auth.EmptyCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cred, err := store.Get(ctx, tt.server)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cred)
		})
	}

	require.Error(t, store.Put(ctx, "registry.example.com", auth.Credential{}))
	require.Error(t, store.Delete(ctx, "registry.example.com"))
}

func TestStaticCredentials_DockerHubAliases(t *testing.T) {
	t.Parallel()

	store := StaticCredentials("docker.io", "user", "pass")
	for _, host := range []string{"registry-1.docker.io", "index.docker.io:443"} {
		cred, err := store.Get(context.Background(), host)
		require.NoError(t, err)
		assert.Equal(t, "user", cred.Username, host)
	}
}

func TestServerHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ghcr.io", serverHost("https://ghcr.io/v2/"))
	assert.Equal(t, "localhost:5000", serverHost("http://localhost:5000"))
	assert.Equal(t, "[::1]:5000", serverHost("[::1]:5000"))
	assert.False(t, isDockerHub("[::1]:5000"))
	assert.True(t, isDockerHub("docker.io:443"))
}
