package publish

import (
	"context"
	"errors"
	"slices"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

var errReadOnlyStore = errors.New("publish: static credential store is read-only")

// dockerHubHosts are the names Docker Hub credentials may be saved under.
var dockerHubHosts = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DockerCredentials returns a store backed by the Docker config file and
// credential helpers. Lookups for Docker Hub try every name it is known by.
func DockerCredentials() (credentials.Store, error) {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}
	return &hubAliasStore{Store: store}, nil
}

// StaticCredentials returns a read-only store holding one username and
// password for registry.
func StaticCredentials(registry, username, password string) credentials.Store {
	return &staticStore{
		host: serverHost(registry),
		cred: auth.Credential{Username: username, Password: password},
	}
}

type staticStore struct {
	host string
	cred auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	host := serverHost(serverAddress)
	if host == s.host || (isDockerHub(host) && isDockerHub(s.host)) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(context.Context, string, auth.Credential) error {
	return errReadOnlyStore
}

func (s *staticStore) Delete(context.Context, string) error {
	return errReadOnlyStore
}

// hubAliasStore retries Docker Hub lookups under its alternate names.
type hubAliasStore struct {
	credentials.Store
}

func (s *hubAliasStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.Store.Get(ctx, serverAddress)
	if err == nil && cred != auth.EmptyCredential {
		return cred, nil
	}
	if !isDockerHub(serverHost(serverAddress)) {
		return cred, err
	}
	for _, alias := range dockerHubHosts {
		if alias == serverAddress {
			continue
		}
		if c, aliasErr := s.Store.Get(ctx, alias); aliasErr == nil && c != auth.EmptyCredential {
			return c, nil
		}
	}
	return cred, err
}

// serverHost strips the scheme and path from a server address, keeping the port.
func serverHost(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr, _, _ = strings.Cut(addr, "/")
	return addr
}

func isDockerHub(hostport string) bool {
	host := hostport
	if i := strings.LastIndex(hostport, ":"); i != -1 && !strings.HasSuffix(hostport, "]") {
		host = hostport[:i]
	}
	return slices.Contains([]string{"docker.io", "index.docker.io", "registry-1.docker.io"}, host)
}
