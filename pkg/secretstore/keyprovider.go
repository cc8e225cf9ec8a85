package secretstore

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyProvider obtains the master key once at startup. Failure here is
// fatal at startup.
type KeyProvider interface {
	MasterKey() ([KeySize]byte, error)
}

// keychainProvider stores the master key in the OS-native credential
// store via zalando/go-keyring, which already abstracts the Keychain
// (macOS), Secret Service (Linux), and Credential Manager / DPAPI
// (Windows) differences calls out — no hand-rolled
// platform-specific file format is needed on top of it.
type keychainProvider struct {
	service string
	user    string
}

// NewKeychainProvider returns a KeyProvider backed by the platform
// keychain, creating a fresh key on first run.
func NewKeychainProvider(service, user string) KeyProvider {
	return &keychainProvider{service: service, user: user}
}

func (p *keychainProvider) MasterKey() ([KeySize]byte, error) {
	var key [KeySize]byte

	encoded, err := keyring.Get(p.service, p.user)
	if err == nil {
		raw, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil || len(raw) != KeySize {
			return key, fmt.Errorf("secretstore: stored master key is malformed")
		}
		copy(key[:], raw)
		return key, nil
	}
	if err != keyring.ErrNotFound {
		return key, fmt.Errorf("secretstore: read master key from keychain: %w", err)
	}

	key, err = GenerateMasterKey()
	if err != nil {
		return key, err
	}
	encoded = base64.StdEncoding.EncodeToString(key[:])
	if err := keyring.Set(p.service, p.user, encoded); err != nil {
		return key, fmt.Errorf("secretstore: persist master key to keychain: %w", err)
	}
	return key, nil
}

// StaticProvider is a KeyProvider that always returns a fixed key, used by
// tests that want deterministic encryption without touching the OS
// keychain.
type StaticProvider struct {
	Key [KeySize]byte
}

func (p StaticProvider) MasterKey() ([KeySize]byte, error) { return p.Key, nil }

// KeychainSecret fetches (or creates and persists) an arbitrary-length
// random secret under a platform keychain entry, the same mechanism
// MasterKey uses: a system keychain entry per platform for the master key
// and JWT signing secret. This is that second entry, used by cmd/mcpmuxd
// to obtain the inbound authorization server's HMAC global secret without
// inventing a second storage format.
func KeychainSecret(service, user string, size int) ([]byte, error) {
	encoded, err := keyring.Get(service, user)
	if err == nil {
		raw, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil || len(raw) != size {
			return nil, fmt.Errorf("secretstore: stored keychain secret %q/%q is malformed", service, user)
		}
		return raw, nil
	}
	if err != keyring.ErrNotFound {
		return nil, fmt.Errorf("secretstore: read keychain secret %q/%q: %w", service, user, err)
	}

	raw := make([]byte, size)
	if _, genErr := rand.Read(raw); genErr != nil {
		return nil, fmt.Errorf("secretstore: generate keychain secret %q/%q: %w", service, user, genErr)
	}
	if err := keyring.Set(service, user, base64.StdEncoding.EncodeToString(raw)); err != nil {
		return nil, fmt.Errorf("secretstore: persist keychain secret %q/%q: %w", service, user, err)
	}
	return raw, nil
}
