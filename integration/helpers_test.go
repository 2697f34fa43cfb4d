//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"oras.land/oras-go/v2/registry/remote"

	"github.com/meigma/apkrepack"
	"github.com/meigma/apkrepack/publish"
	"github.com/meigma/apkrepack/signing"
)

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container
// on first use.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		registryAddr, registryErr = startRegistryContainer(context.Background())
	})
	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns its host:port.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// newRepository returns a plain-HTTP repository named after the test.
func newRepository(tb testing.TB, addr string) *remote.Repository {
	tb.Helper()

	name := strings.ToLower(strings.NewReplacer("/", "-", "_", "-").Replace(tb.Name()))
	repo, err := publish.NewRepository(fmt.Sprintf("%s/test/%s", addr, name), publish.WithPlainHTTP(true))
	require.NoError(tb, err)
	return repo
}

var testIdentity = sync.OnceValues(func() (*signing.Identity, error) {
	return signing.GenerateIdentity(signing.WithKeyType(signing.KeyECDSA))
})

// buildPackage signs files with the shared test identity.
func buildPackage(tb testing.TB, files map[string][]byte) []byte {
	tb.Helper()

	id, err := testIdentity()
	require.NoError(tb, err)
	r, err := apkrepack.New(apkrepack.WithIdentity(id))
	require.NoError(tb, err)
	apk, err := r.Build(context.Background(), files)
	require.NoError(tb, err)
	return apk
}
