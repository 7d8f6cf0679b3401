// Package secretcache provides the process-lifetime store for credentials and
// tokens. Entries never expire; they are removed only by an explicit delete.
package secretcache

import (
	"context"
	"sync"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
)

// Cache is an in-memory Store. A single mutex guards the whole map: access is
// infrequent and the number of keys small, so contention is not a concern.
type Cache struct {
	mu      sync.Mutex
	entries map[string]secret.Secret

	namespace string
	namer     target.Namer
}

type Option func(*Cache)

// WithNamespace sets the namespace that prefixes every key.
func WithNamespace(namespace string) Option {
	return func(c *Cache) {
		c.namespace = namespace
	}
}

// WithNamer replaces the key derivation function.
func WithNamer(namer target.Namer) Option {
	return func(c *Cache) {
		if namer != nil {
			c.namer = namer
		}
	}
}

// New creates an empty cache. The caller owns its lifetime and shares it with
// every component that needs it.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:   make(map[string]secret.Secret),
		namespace: target.DefaultNamespace,
		namer:     target.DefaultNamer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache) WriteCredential(_ context.Context, t target.Target, cred secret.Credential) error {
	return c.write(t, secret.FromCredential(cred))
}

func (c *Cache) ReadCredential(_ context.Context, t target.Target) (secret.Credential, bool, error) {
	s, found, err := c.read(t, secret.KindCredential)
	if err != nil || !found {
		return secret.Credential{}, false, err
	}

	cred, _ := s.Credential()
	return cred, true, nil
}

func (c *Cache) DeleteCredential(_ context.Context, t target.Target) error {
	return c.delete(t, secret.KindCredential)
}

func (c *Cache) WriteToken(_ context.Context, t target.Target, tok secret.Token) error {
	return c.write(t, secret.FromToken(tok))
}

func (c *Cache) ReadToken(_ context.Context, t target.Target) (secret.Token, bool, error) {
	s, found, err := c.read(t, secret.KindToken)
	if err != nil || !found {
		return secret.Token{}, false, err
	}

	tok, _ := s.Token()
	return tok, true, nil
}

func (c *Cache) DeleteToken(_ context.Context, t target.Target) error {
	return c.delete(t, secret.KindToken)
}

// Len returns the number of entries held, of either kind.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// write validates before locking so that invalid input cannot disturb existing
// entries. The last write to a key wins regardless of variant.
func (c *Cache) write(t target.Target, s secret.Secret) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	key := c.namer(t, c.namespace)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = s
	return nil
}

func (c *Cache) read(t target.Target, kind secret.Kind) (secret.Secret, bool, error) {
	if err := t.Validate(); err != nil {
		return secret.Secret{}, false, err
	}

	key := c.namer(t, c.namespace)

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.entries[key]
	if !ok || s.Kind() != kind {
		return secret.Secret{}, false, nil
	}

	return s, true, nil
}

func (c *Cache) delete(t target.Target, kind secret.Kind) error {
	if err := t.Validate(); err != nil {
		return err
	}

	key := c.namer(t, c.namespace)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.entries[key]; ok && s.Kind() == kind {
		delete(c.entries, key)
	}

	return nil
}
