package durable

import (
	"fmt"

	"github.com/99designs/keyring"
	"github.com/chinmina/chinmina-git-credential/internal/config"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/rs/zerolog/log"
)

// Open creates the durable store selected by configuration. It returns nil
// with no error when durable storage is disabled.
func Open(cfg config.DurableConfig, namespace string) (secretcache.Store, error) {
	switch cfg.Type {
	case "none", "":
		log.Debug().Msg("durable store disabled")
		return nil, nil

	case "keyring":
		backends := make([]keyring.BackendType, 0, len(cfg.KeyringBackends))
		for _, b := range cfg.KeyringBackends {
			backends = append(backends, keyring.BackendType(b))
		}

		ring, err := keyring.Open(keyring.Config{
			ServiceName:      cfg.Service,
			AllowedBackends:  backends,
			FileDir:          cfg.KeyringFileDir,
			FilePasswordFunc: keyring.FixedStringPrompt(cfg.KeyringFilePassword),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open keyring: %w", err)
		}

		log.Debug().
			Str("store_type", "keyring").
			Str("service", cfg.Service).
			Strs("backends", cfg.KeyringBackends).
			Msg("durable store opened")

		store := NewKeyring(ring, cfg.Service, WithNamespace(namespace))
		return secretcache.NewInstrumented(store, "keyring"), nil

	case "system":
		log.Debug().
			Str("store_type", "system").
			Str("service", cfg.Service).
			Msg("durable store opened")

		store := NewSystem(cfg.Service, WithNamespace(namespace))
		return secretcache.NewInstrumented(store, "system"), nil

	default:
		return nil, fmt.Errorf("invalid durable store type %q", cfg.Type)
	}
}
