package secretcache_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTarget(t *testing.T, raw string) target.Target {
	t.Helper()
	tt, err := target.Parse(raw)
	require.NoError(t, err)
	return tt
}

var (
	credA = secret.Credential{Username: "alice", Password: "first"}
	credB = secret.Credential{Username: "bob", Password: "second"}
	tokA  = secret.Token{Type: secret.TokenTypePersonal, Value: "token-value"}
)

func TestCache_ReadMiss(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	cred, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, secret.Credential{}, cred)

	tok, found, err := c.ReadToken(ctx, tt)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, secret.Token{}, tok)
}

func TestCache_VariantIsolation(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	credTarget := mustTarget(t, "https://example.com/cred")
	tokTarget := mustTarget(t, "https://example.com/tok")

	require.NoError(t, c.WriteCredential(ctx, credTarget, credA))
	require.NoError(t, c.WriteToken(ctx, tokTarget, tokA))

	_, found, err := c.ReadToken(ctx, credTarget)
	require.NoError(t, err)
	assert.False(t, found, "credential must not be visible as a token")

	_, found, err = c.ReadCredential(ctx, tokTarget)
	require.NoError(t, err)
	assert.False(t, found, "token must not be visible as a credential")
}

func TestCache_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	require.NoError(t, c.WriteCredential(ctx, tt, credA))
	require.NoError(t, c.WriteCredential(ctx, tt, credB))

	cred, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, credB, cred)
	assert.Equal(t, 1, c.Len())
}

func TestCache_CrossVariantOverwrite(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	require.NoError(t, c.WriteCredential(ctx, tt, credA))
	require.NoError(t, c.WriteToken(ctx, tt, tokA))

	_, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.False(t, found)

	tok, found, err := c.ReadToken(ctx, tt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tokA, tok)
	assert.Equal(t, 1, c.Len())
}

func TestCache_KeyNormalization(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()

	require.NoError(t, c.WriteCredential(ctx, mustTarget(t, "HTTPS://Example.com"), credA))

	cred, found, err := c.ReadCredential(ctx, mustTarget(t, "https://example.com"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, credA, cred)
}

func TestCache_NamespacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	tt := mustTarget(t, "https://example.com")

	git := secretcache.New(secretcache.WithNamespace("git"))
	require.NoError(t, git.WriteCredential(ctx, tt, credA))

	other := secretcache.New(secretcache.WithNamespace("other"))
	_, found, err := other.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_CustomNamer(t *testing.T) {
	ctx := context.Background()
	hostOnly := func(t target.Target, namespace string) string {
		return namespace + "|" + strings.ToLower(t.Host)
	}
	c := secretcache.New(secretcache.WithNamer(hostOnly))

	require.NoError(t, c.WriteCredential(ctx, mustTarget(t, "https://example.com/one"), credA))

	cred, found, err := c.ReadCredential(ctx, mustTarget(t, "http://EXAMPLE.com/two"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, credA, cred)
}

func TestCache_ValidationLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	require.NoError(t, c.WriteCredential(ctx, tt, credA))

	err := c.WriteCredential(ctx, tt, secret.Credential{Password: "no-user"})
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)

	err = c.WriteToken(ctx, tt, secret.Token{Type: secret.TokenTypeUnknown, Value: "v"})
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)

	err = c.WriteToken(ctx, tt, secret.Token{Type: secret.TokenTypeAccess})
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)

	cred, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, credA, cred)
}

func TestCache_InvalidTarget(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	invalid := target.Target{Host: "example.com"}

	assert.ErrorIs(t, c.WriteCredential(ctx, invalid, credA), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, c.WriteToken(ctx, invalid, tokA), autherr.ErrInvalidArgument)

	_, _, err := c.ReadCredential(ctx, invalid)
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)

	_, _, err = c.ReadToken(ctx, invalid)
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)

	assert.ErrorIs(t, c.DeleteCredential(ctx, invalid), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, c.DeleteToken(ctx, invalid), autherr.ErrInvalidArgument)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	require.NoError(t, c.WriteCredential(ctx, tt, credA))
	require.NoError(t, c.DeleteCredential(ctx, tt))

	_, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, c.Len())
}

func TestCache_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	assert.NoError(t, c.DeleteCredential(ctx, tt))
	assert.NoError(t, c.DeleteToken(ctx, tt))
}

func TestCache_DeleteWrongVariantIsNoop(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()
	tt := mustTarget(t, "https://example.com")

	require.NoError(t, c.WriteToken(ctx, tt, tokA))
	require.NoError(t, c.DeleteCredential(ctx, tt))

	tok, found, err := c.ReadToken(ctx, tt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tokA, tok)

	require.NoError(t, c.WriteCredential(ctx, tt, credA))
	require.NoError(t, c.DeleteToken(ctx, tt))

	cred, found, err := c.ReadCredential(ctx, tt)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, credA, cred)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := secretcache.New()

	targets := make([]target.Target, 5)
	for i := range targets {
		targets[i] = mustTarget(t, fmt.Sprintf("https://example.com/repo-%d", i))
	}

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tt := targets[i%len(targets)]

			if i%2 == 0 {
				assert.NoError(t, c.WriteCredential(ctx, tt, credA))
			} else {
				assert.NoError(t, c.WriteToken(ctx, tt, tokA))
			}
			_, _, err := c.ReadCredential(ctx, tt)
			assert.NoError(t, err)
			assert.NoError(t, c.DeleteToken(ctx, tt))
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 5)
}
