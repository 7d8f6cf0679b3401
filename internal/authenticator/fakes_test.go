package authenticator_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/stretchr/testify/require"
)

var (
	minted = secret.Credential{Username: "PersonalAccessToken", Password: "minted-pat"}
	access = secret.Token{Type: secret.TokenTypeAccess, Value: "access-token"}
)

// fakePrompt returns a fixed assertion or error. When gate is set, each call
// signals entered and then waits for the gate to close.
type fakePrompt struct {
	assertion string
	err       error
	calls     atomic.Int32

	entered chan struct{}
	gate    chan struct{}
}

func (p *fakePrompt) Prompt(ctx context.Context, _ target.Target, _ string) (string, error) {
	p.calls.Add(1)

	if p.gate != nil {
		p.entered <- struct{}{}
		<-p.gate
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	return p.assertion, p.err
}

type fakeAuthority struct {
	mu sync.Mutex

	token       secret.Token
	exchangeErr error
	credential  secret.Credential
	mintErr     error

	exchanges   int
	mints       int
	lastCompact bool
	lastMinted  secret.Token
}

func newAuthority() *fakeAuthority {
	return &fakeAuthority{token: access, credential: minted}
}

func (a *fakeAuthority) AcquireToken(ctx context.Context, _ target.Target, _, _, _, _ string, _ map[string]string) (secret.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.exchanges++
	if err := ctx.Err(); err != nil {
		return secret.Token{}, err
	}
	return a.token, a.exchangeErr
}

func (a *fakeAuthority) GeneratePersonalAccessToken(_ context.Context, _ target.Target, tok secret.Token, requireCompact bool) (secret.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mints++
	a.lastCompact = requireCompact
	a.lastMinted = tok
	return a.credential, a.mintErr
}

func (a *fakeAuthority) counts() (exchanges, mints int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exchanges, a.mints
}

func mustTarget(t *testing.T, raw string) target.Target {
	t.Helper()
	tt, err := target.Parse(raw)
	require.NoError(t, err)
	return tt
}
