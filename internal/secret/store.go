// Package secret resolves database passwords named in the configuration.
package secret

import (
	"fmt"
	"os"
)

// SecretStore looks up sensitive values such as database passwords.
type SecretStore interface {
	// Get returns the secret stored under key, or an empty slice and nil
	// error when the key does not exist.
	Get(key string) ([]byte, error)
}

// New returns the store for a backend name: "env" (default) or "keychain".
func New(backend string) (SecretStore, error) {
	switch backend {
	case "", "env":
		return EnvStore{}, nil
	case "keychain":
		return NewKeychainStore(KeychainService), nil
	default:
		return nil, fmt.Errorf("unknown secret backend: %q", backend)
	}
}

// EnvStore reads secrets from environment variables; the key is the
// variable name.
type EnvStore struct{}

func (EnvStore) Get(key string) ([]byte, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

// Password resolves key through s. An empty key means no password.
func Password(s SecretStore, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	v, err := s.Get(key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", key, err)
	}
	return string(v), nil
}
