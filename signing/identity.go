package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/meigma/apkrepack/internal/ziptype"
)

// KeyType selects the key algorithm for generated identities.
type KeyType uint8

const (
	KeyRSA KeyType = iota
	KeyECDSA
)

func (k KeyType) String() string {
	switch k {
	case KeyRSA:
		return "rsa"
	case KeyECDSA:
		return "ecdsa"
	default:
		return "unknown"
	}
}

// Identity is a signing key and the certificate embedded in signature blocks.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.Signer
}

// BlockExtension returns the signature block extension for the identity's
// key algorithm: "RSA" or "EC".
func (id *Identity) BlockExtension() (string, error) {
	switch id.PrivateKey.Public().(type) {
	case *rsa.PublicKey:
		return "RSA", nil
	case *ecdsa.PublicKey:
		return "EC", nil
	default:
		return "", fmt.Errorf("%w: unsupported key type %T", ziptype.ErrSigning, id.PrivateKey)
	}
}

// Validate checks that the certificate carries the private key's public half.
func (id *Identity) Validate() error {
	if id == nil || id.Certificate == nil || id.PrivateKey == nil {
		return ziptype.ErrNoIdentity
	}
	pub, ok := id.PrivateKey.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(id.Certificate.PublicKey) {
		return fmt.Errorf("%w: certificate does not match private key", ziptype.ErrSigning)
	}
	if _, err := id.BlockExtension(); err != nil {
		return err
	}
	return nil
}

// identityConfig holds configuration for GenerateIdentity.
type identityConfig struct {
	keyType    KeyType
	rsaBits    int
	commonName string
	validity   time.Duration
	now        func() time.Time
}

// IdentityOption configures GenerateIdentity.
type IdentityOption func(*identityConfig)

// WithKeyType selects RSA (default) or ECDSA P-256 keys.
func WithKeyType(k KeyType) IdentityOption {
	return func(cfg *identityConfig) {
		cfg.keyType = k
	}
}

// WithRSABits sets the RSA modulus size (default 2048).
func WithRSABits(bits int) IdentityOption {
	return func(cfg *identityConfig) {
		cfg.rsaBits = bits
	}
}

// WithCommonName sets the certificate subject and issuer common name.
func WithCommonName(cn string) IdentityOption {
	return func(cfg *identityConfig) {
		cfg.commonName = cn
	}
}

// WithValidity sets how long the certificate is valid (default 25 years).
func WithValidity(d time.Duration) IdentityOption {
	return func(cfg *identityConfig) {
		cfg.validity = d
	}
}

// WithNow overrides the clock used for the validity window.
func WithNow(now func() time.Time) IdentityOption {
	return func(cfg *identityConfig) {
		cfg.now = now
	}
}

// GenerateIdentity creates a fresh key pair and a self-signed certificate.
//
// The certificate's NotBefore is backdated by an hour so devices with a
// slightly slow clock still accept it.
func GenerateIdentity(opts ...IdentityOption) (*Identity, error) {
	cfg := identityConfig{
		keyType:    KeyRSA,
		rsaBits:    2048,
		commonName: "apkrepack",
		validity:   25 * 365 * 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var key crypto.Signer
	var err error
	switch cfg.keyType {
	case KeyRSA:
		key, err = rsa.GenerateKey(rand.Reader, cfg.rsaBits)
	case KeyECDSA:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		err = fmt.Errorf("unknown key type %d", cfg.keyType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %w", ziptype.ErrSigning, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, fmt.Errorf("%w: generate serial: %w", ziptype.ErrSigning, err)
	}

	now := cfg.now()
	name := pkix.Name{CommonName: cfg.commonName}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(cfg.validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("%w: create certificate: %w", ziptype.ErrSigning, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %w", ziptype.ErrSigning, err)
	}

	return &Identity{Certificate: cert, PrivateKey: key}, nil
}

// LoadIdentity parses a PEM certificate and a PEM private key (PKCS#8,
// PKCS#1 or SEC 1).
func LoadIdentity(certPEM, keyPEM []byte) (*Identity, error) {
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%w: no CERTIFICATE block", ziptype.ErrSigning)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %w", ziptype.ErrSigning, err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("%w: no private key block", ziptype.ErrSigning)
	}
	key, err := parsePrivateKey(keyBlock)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %w", ziptype.ErrSigning, err)
	}

	id := &Identity{Certificate: cert, PrivateKey: key}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return id, nil
}

func parsePrivateKey(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// EncodePEM returns the certificate and PKCS#8 private key as PEM, suitable
// for LoadIdentity.
func (id *Identity) EncodePEM() (certPEM, keyPEM []byte, err error) {
	if id == nil || id.Certificate == nil || id.PrivateKey == nil {
		return nil, nil, ziptype.ErrNoIdentity
	}
	der, err := x509.MarshalPKCS8PrivateKey(id.PrivateKey)
	if err != nil {
		return nil, nil, errors.Join(ziptype.ErrSigning, err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: id.Certificate.Raw})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return certPEM, keyPEM, nil
}
