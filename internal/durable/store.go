// Package durable provides secret stores that outlive the process, backed by
// the operating system keyring. They honour the same variant-discriminated
// contract as the in-memory cache.
package durable

import (
	"context"
	"fmt"
	"sync"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/rs/zerolog/log"
)

// backend is the raw key/value interface of a keyring implementation.
type backend interface {
	get(key string) ([]byte, bool, error)
	set(key string, data []byte) error
	remove(key string) error
}

// Store adapts a keyring backend to secretcache.Store. The mutex makes the
// read-check-remove of a variant delete atomic within this process; other
// processes sharing the keyring are not coordinated.
type Store struct {
	mu      sync.Mutex
	backend backend
	name    string

	namespace string
	namer     target.Namer
}

var _ secretcache.Store = (*Store)(nil)

type Option func(*Store)

// WithNamespace sets the namespace that prefixes every key.
func WithNamespace(namespace string) Option {
	return func(s *Store) {
		s.namespace = namespace
	}
}

// WithNamer replaces the key derivation function.
func WithNamer(namer target.Namer) Option {
	return func(s *Store) {
		if namer != nil {
			s.namer = namer
		}
	}
}

func newStore(name string, b backend, opts ...Option) *Store {
	s := &Store{
		backend:   b,
		name:      name,
		namespace: target.DefaultNamespace,
		namer:     target.DefaultNamer,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) WriteCredential(_ context.Context, t target.Target, c secret.Credential) error {
	return s.write(t, secret.FromCredential(c))
}

func (s *Store) ReadCredential(_ context.Context, t target.Target) (secret.Credential, bool, error) {
	stored, found, err := s.read(t, secret.KindCredential)
	if err != nil || !found {
		return secret.Credential{}, false, err
	}

	c, _ := stored.Credential()
	return c, true, nil
}

func (s *Store) DeleteCredential(_ context.Context, t target.Target) error {
	return s.delete(t, secret.KindCredential)
}

func (s *Store) WriteToken(_ context.Context, t target.Target, tok secret.Token) error {
	return s.write(t, secret.FromToken(tok))
}

func (s *Store) ReadToken(_ context.Context, t target.Target) (secret.Token, bool, error) {
	stored, found, err := s.read(t, secret.KindToken)
	if err != nil || !found {
		return secret.Token{}, false, err
	}

	tok, _ := stored.Token()
	return tok, true, nil
}

func (s *Store) DeleteToken(_ context.Context, t target.Target) error {
	return s.delete(t, secret.KindToken)
}

func (s *Store) write(t target.Target, sec secret.Secret) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := sec.Validate(); err != nil {
		return err
	}

	data, err := encode(sec)
	if err != nil {
		return err
	}

	key := s.namer(t, s.namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.set(key, data); err != nil {
		return fmt.Errorf("%s: failed to store secret: %w", s.name, err)
	}

	return nil
}

func (s *Store) read(t target.Target, kind secret.Kind) (secret.Secret, bool, error) {
	if err := t.Validate(); err != nil {
		return secret.Secret{}, false, err
	}

	key := s.namer(t, s.namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, found, err := s.load(key)
	if err != nil || !found || stored.Kind() != kind {
		return secret.Secret{}, false, err
	}

	return stored, true, nil
}

func (s *Store) delete(t target.Target, kind secret.Kind) error {
	if err := t.Validate(); err != nil {
		return err
	}

	key := s.namer(t, s.namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	data, found, err := s.backend.get(key)
	if err != nil {
		return fmt.Errorf("%s: failed to read secret: %w", s.name, err)
	}
	if !found {
		return nil
	}

	// an unreadable entry can never be served, so any delete clears it
	if stored, err := decode(data); err == nil && stored.Kind() != kind {
		return nil
	} else if err != nil {
		log.Warn().Str("store", s.name).Str("key", key).Err(err).Msg("removing unreadable secret")
	}

	if err := s.backend.remove(key); err != nil {
		return fmt.Errorf("%s: failed to remove secret: %w", s.name, err)
	}

	return nil
}

// load reads and decodes the entry for key. Entries that cannot be decoded
// are reported as errors and left in place.
func (s *Store) load(key string) (secret.Secret, bool, error) {
	data, found, err := s.backend.get(key)
	if err != nil {
		return secret.Secret{}, false, fmt.Errorf("%s: failed to read secret: %w", s.name, err)
	}
	if !found {
		return secret.Secret{}, false, nil
	}

	stored, err := decode(data)
	if err != nil {
		log.Warn().Str("store", s.name).Str("key", key).Err(err).Msg("stored secret is unreadable")
		return secret.Secret{}, false, fmt.Errorf("%s: %w", s.name, err)
	}

	return stored, true, nil
}
