package durable

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// systemBackend stores secrets in the platform secret service (Keychain,
// Secret Service over D-Bus, Windows Credential Manager). The cache key is
// used as the account name under a fixed service.
type systemBackend struct {
	service string
}

// NewSystem creates a Store backed by the platform secret service.
func NewSystem(service string, opts ...Option) *Store {
	return newStore("system", &systemBackend{service: service}, opts...)
}

func (b *systemBackend) get(key string) ([]byte, bool, error) {
	value, err := keyring.Get(b.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return []byte(value), true, nil
}

func (b *systemBackend) set(key string, data []byte) error {
	return keyring.Set(b.service, key, string(data))
}

func (b *systemBackend) remove(key string) error {
	err := keyring.Delete(b.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
