package secret_test

import (
	"bytes"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecret_CredentialVariant(t *testing.T) {
	c := secret.Credential{Username: "user", Password: "pass"}
	s := secret.FromCredential(c)

	assert.Equal(t, secret.KindCredential, s.Kind())

	actual, ok := s.Credential()
	require.True(t, ok)
	assert.Equal(t, c, actual)

	_, ok = s.Token()
	assert.False(t, ok)
}

func TestSecret_TokenVariant(t *testing.T) {
	tok := secret.Token{Type: secret.TokenTypePersonal, Value: "abc"}
	s := secret.FromToken(tok)

	assert.Equal(t, secret.KindToken, s.Kind())

	actual, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, tok, actual)

	_, ok = s.Credential()
	assert.False(t, ok)
}

func TestSecret_Validate(t *testing.T) {
	assert.NoError(t, secret.FromCredential(secret.Credential{Username: "u"}).Validate())
	assert.NoError(t, secret.FromToken(secret.Token{Type: secret.TokenTypeFederated, Value: "v"}).Validate())

	assert.ErrorIs(t, secret.Secret{}.Validate(), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, secret.FromCredential(secret.Credential{Password: "p"}).Validate(), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, secret.FromToken(secret.Token{Type: secret.TokenTypeAccess}).Validate(), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, secret.FromToken(secret.Token{Value: "v"}).Validate(), autherr.ErrInvalidArgument)
	assert.ErrorIs(t, secret.FromToken(secret.Token{Type: secret.TokenType(42), Value: "v"}).Validate(), autherr.ErrInvalidArgument)
}

func TestParseTokenType(t *testing.T) {
	for _, tt := range []secret.TokenType{
		secret.TokenTypeAccess,
		secret.TokenTypeRefresh,
		secret.TokenTypePersonal,
		secret.TokenTypeFederated,
	} {
		t.Run(tt.String(), func(t *testing.T) {
			parsed, err := secret.ParseTokenType(tt.String())
			require.NoError(t, err)
			assert.Equal(t, tt, parsed)
		})
	}

	parsed, err := secret.ParseTokenType("PERSONAL")
	require.NoError(t, err)
	assert.Equal(t, secret.TokenTypePersonal, parsed)

	_, err = secret.ParseTokenType("unknown")
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)
}

func TestParseKind(t *testing.T) {
	k, err := secret.ParseKind("credential")
	require.NoError(t, err)
	assert.Equal(t, secret.KindCredential, k)

	k, err = secret.ParseKind("token")
	require.NoError(t, err)
	assert.Equal(t, secret.KindToken, k)

	_, err = secret.ParseKind("password")
	assert.ErrorIs(t, err, autherr.ErrInvalidArgument)
}

func TestSecret_LogRedactsValues(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Info().
		Object("cred", secret.FromCredential(secret.Credential{Username: "user", Password: "hunter2"})).
		Object("tok", secret.FromToken(secret.Token{Type: secret.TokenTypeAccess, Value: "bearer-value"})).
		Msg("")

	out := buf.String()
	assert.Contains(t, out, `"username":"user"`)
	assert.Contains(t, out, `"type":"access"`)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "bearer-value")
}
