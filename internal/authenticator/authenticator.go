// Package authenticator produces usable credentials for a target, running an
// interactive sign-in when nothing suitable is cached.
package authenticator

import (
	"context"
	"errors"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"golang.org/x/sync/singleflight"
)

// Prompt obtains an identity assertion for a target from the user. A
// declined prompt returns an error matching autherr.ErrPromptCancelled.
type Prompt interface {
	Prompt(ctx context.Context, t target.Target, message string) (string, error)
}

// Authority exchanges assertions for tokens and tokens for credentials.
type Authority interface {
	AcquireToken(
		ctx context.Context,
		t target.Target,
		assertion, clientID, resourceID, redirectURI string,
		extra map[string]string,
	) (secret.Token, error)

	GeneratePersonalAccessToken(
		ctx context.Context,
		t target.Target,
		tok secret.Token,
		requireCompact bool,
	) (secret.Credential, error)
}

// Params are the application registration details sent with each exchange.
type Params struct {
	ClientID       string
	ResourceID     string
	RedirectURI    string
	ExtraParams    map[string]string
	RequireCompact bool

	// Namespace keys in-flight acquisitions when single-flight is enabled.
	Namespace string
}

// Interactive acquires credentials through the cache-then-prompt pipeline.
type Interactive struct {
	cache     secretcache.Store
	durable   secretcache.Store
	prompt    Prompt
	authority Authority
	params    Params
	flights   *singleflight.Group
}

type Option func(*Interactive)

// WithDurableStore adds a store consulted after the memory cache misses and
// written alongside it on success. A nil store is ignored.
func WithDurableStore(store secretcache.Store) Option {
	return func(a *Interactive) {
		a.durable = store
	}
}

// WithSingleFlight joins concurrent acquisitions for the same target onto
// the first caller's pipeline, so the user is prompted once.
func WithSingleFlight() Option {
	return func(a *Interactive) {
		a.flights = &singleflight.Group{}
	}
}

func New(cache secretcache.Store, prompt Prompt, authority Authority, params Params, opts ...Option) *Interactive {
	initMetrics()

	a := &Interactive{
		cache:     cache,
		prompt:    prompt,
		authority: authority,
		params:    params,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// SetCredentials is not supported: credentials only enter the store through
// Acquire. Arguments are still validated so callers see input errors first.
func (a *Interactive) SetCredentials(_ context.Context, t target.Target, c secret.Credential) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	return autherr.UnsupportedError{Operation: "set credentials"}
}

// DeleteCredentials removes the credential held for t from the memory cache
// and the durable store. Tokens and missing entries are left alone.
func (a *Interactive) DeleteCredentials(ctx context.Context, t target.Target) error {
	if err := t.Validate(); err != nil {
		return err
	}

	err := a.cache.DeleteCredential(ctx, t)
	if a.durable != nil {
		err = errors.Join(err, a.durable.DeleteCredential(ctx, t))
	}

	return err
}
