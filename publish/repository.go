package publish

import (
	"context"
	"fmt"
	"net/http"

	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// DefaultUserAgent is sent with every registry request.
const DefaultUserAgent = "apkrepack/1.0"

// repositoryConfig holds configuration for NewRepository.
type repositoryConfig struct {
	plainHTTP bool
	userAgent string
	credStore credentials.Store
}

// RepositoryOption configures NewRepository.
type RepositoryOption func(*repositoryConfig)

// WithPlainHTTP talks to the registry over HTTP instead of HTTPS.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) RepositoryOption {
	return func(cfg *repositoryConfig) {
		cfg.plainHTTP = enabled
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) RepositoryOption {
	return func(cfg *repositoryConfig) {
		cfg.userAgent = ua
	}
}

// WithCredentialStore sets where registry credentials are looked up.
func WithCredentialStore(store credentials.Store) RepositoryOption {
	return func(cfg *repositoryConfig) {
		cfg.credStore = store
	}
}

// WithStaticCredentials uses a fixed username and password for one registry host.
func WithStaticCredentials(registry, username, password string) RepositoryOption {
	return func(cfg *repositoryConfig) {
		cfg.credStore = StaticCredentials(registry, username, password)
	}
}

// WithDockerConfig reads credentials from ~/.docker/config.json and the
// credential helpers it names. When the config cannot be loaded, requests
// are sent anonymously.
func WithDockerConfig() RepositoryOption {
	return func(cfg *repositoryConfig) {
		store, err := DockerCredentials()
		if err != nil {
			return
		}
		cfg.credStore = store
	}
}

// NewRepository returns a remote repository for ref, such as
// "ghcr.io/acme/merchant-app". A tag or digest in ref is ignored by the
// repository; pass the tag to Push or Pull instead.
func NewRepository(ref string, opts ...RepositoryOption) (*remote.Repository, error) {
	cfg := repositoryConfig{userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(&cfg)
	}

	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, ref, err)
	}
	repo.PlainHTTP = cfg.plainHTTP
	repo.Client = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if cfg.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return cfg.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{cfg.userAgent},
		},
	}
	return repo, nil
}
