package durable

import (
	"errors"

	"github.com/99designs/keyring"
)

// ringBackend stores secrets in a 99designs keyring, which supports the
// platform keychains as well as an encrypted file backend.
type ringBackend struct {
	ring  keyring.Keyring
	label string
}

// NewKeyring creates a Store over an opened keyring.
func NewKeyring(ring keyring.Keyring, label string, opts ...Option) *Store {
	return newStore("keyring", &ringBackend{ring: ring, label: label}, opts...)
}

func (b *ringBackend) get(key string) ([]byte, bool, error) {
	item, err := b.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return item.Data, true, nil
}

func (b *ringBackend) set(key string, data []byte) error {
	return b.ring.Set(keyring.Item{
		Key:         key,
		Data:        data,
		Label:       b.label,
		Description: "git credential",
	})
}

func (b *ringBackend) remove(key string) error {
	err := b.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}
