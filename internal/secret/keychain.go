package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// KeychainService is the default macOS Keychain service name for report
// database passwords.
const KeychainService = "form-reports"

// KeychainStore reads generic passwords from the macOS Keychain through the
// `security` CLI. The key is the account name.
type KeychainStore struct {
	service string
}

// NewKeychainStore creates a KeychainStore for a Keychain service name.
func NewKeychainStore(service string) *KeychainStore {
	return &KeychainStore{service: service}
}

func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", // print only the password
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// security exits with 44 when the item does not exist.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}
