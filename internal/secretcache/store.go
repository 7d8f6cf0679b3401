package secretcache

import (
	"context"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
)

// CredentialStore holds username/password credentials keyed by target.
type CredentialStore interface {
	// WriteCredential stores c for t, replacing whatever was held for t.
	WriteCredential(ctx context.Context, t target.Target, c secret.Credential) error

	// ReadCredential returns the credential for t. A token stored for t is not
	// visible and reads as not found.
	ReadCredential(ctx context.Context, t target.Target) (secret.Credential, bool, error)

	// DeleteCredential removes the entry for t only if it holds a credential.
	DeleteCredential(ctx context.Context, t target.Target) error
}

// TokenStore holds typed tokens keyed by target.
type TokenStore interface {
	WriteToken(ctx context.Context, t target.Target, tok secret.Token) error
	ReadToken(ctx context.Context, t target.Target) (secret.Token, bool, error)
	DeleteToken(ctx context.Context, t target.Target) error
}

// Store is implemented by the in-memory cache and by durable stores. Both
// halves share a single keyspace: a key holds either a credential or a token.
type Store interface {
	CredentialStore
	TokenStore
}
