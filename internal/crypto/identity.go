package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"sync"
)

// IdentityStore owns the one asymmetric key pair of this replica,
// generated lazily and kept for the process lifetime. The pair is
// suitable for key transport (RSA-OAEP) but is intentionally inert:
// no component consumes it yet, it exists for future out-of-band key
// exchange. It is never persisted or rotated.
type IdentityStore struct {
	mu  sync.Mutex
	key *rsa.PrivateKey
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{}
}

// GenerateKeyPair returns the replica's key pair, generating it on
// first call. Subsequent calls return the same pair.
func (s *IdentityStore) GenerateKeyPair() (*rsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, nil
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("%w: generating identity key pair: %v", ErrUnavailable, err)
	}
	s.key = key
	return s.key, nil
}

// ExportPublicKey serializes the public half as base64-encoded PKIX
// (SPKI) DER, generating the pair first if needed. Output is stable for
// a given key pair.
func (s *IdentityStore) ExportPublicKey() (string, error) {
	key, err := s.GenerateKeyPair()
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("%w: encoding public key: %v", ErrUnavailable, err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
