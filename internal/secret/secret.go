// Package secret models the two kinds of secret held by the credential stores:
// a username/password Credential and a typed bearer Token. A Secret is a
// tagged union of the two, and readers select a variant by its tag.
package secret

import (
	"fmt"
	"strings"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/rs/zerolog"
)

// Kind is the tag of a Secret.
type Kind int

const (
	KindCredential Kind = iota + 1
	KindToken
)

func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindToken:
		return "token"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "credential":
		return KindCredential, nil
	case "token":
		return KindToken, nil
	default:
		return 0, autherr.InvalidArgument("kind", fmt.Sprintf("%q is not a secret kind", s))
	}
}

// TokenType classifies a Token by how it was issued.
type TokenType int

const (
	TokenTypeUnknown TokenType = iota
	TokenTypeAccess
	TokenTypeRefresh
	TokenTypePersonal
	TokenTypeFederated
)

var tokenTypeNames = map[TokenType]string{
	TokenTypeAccess:    "access",
	TokenTypeRefresh:   "refresh",
	TokenTypePersonal:  "personal",
	TokenTypeFederated: "federated",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a recognized token type.
func (t TokenType) Valid() bool {
	_, ok := tokenTypeNames[t]
	return ok
}

// ParseTokenType is the inverse of TokenType.String. Matching ignores case.
func ParseTokenType(s string) (TokenType, error) {
	for t, name := range tokenTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return TokenTypeUnknown, autherr.InvalidArgument("token type", fmt.Sprintf("%q is not a recognized token type", s))
}

// Credential is a username/password pair.
type Credential struct {
	Username string
	Password string
}

// Validate checks the credential may be stored.
func (c Credential) Validate() error {
	if c.Username == "" {
		return autherr.InvalidArgument("username", "must not be empty")
	}
	return nil
}

// MarshalZerologObject logs the credential without its password.
func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Str("username", c.Username).
		Bool("hasPassword", c.Password != "")
}

// Token is a bearer value issued by an identity authority.
type Token struct {
	Type  TokenType
	Value string
}

// Validate checks the token may be stored.
func (t Token) Validate() error {
	if !t.Type.Valid() {
		return autherr.InvalidArgument("token type", fmt.Sprintf("%d is not a recognized token type", int(t.Type)))
	}
	if t.Value == "" {
		return autherr.InvalidArgument("token value", "must not be empty")
	}
	return nil
}

// MarshalZerologObject logs the token without its value.
func (t Token) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("type", t.Type).
		Int("length", len(t.Value))
}

// Secret holds exactly one of a Credential or a Token. The zero value holds
// neither and is never accepted by a store.
type Secret struct {
	kind       Kind
	credential Credential
	token      Token
}

// FromCredential wraps a Credential.
func FromCredential(c Credential) Secret {
	return Secret{kind: KindCredential, credential: c}
}

// FromToken wraps a Token.
func FromToken(t Token) Secret {
	return Secret{kind: KindToken, token: t}
}

// Kind returns the variant tag.
func (s Secret) Kind() Kind {
	return s.kind
}

// Credential returns the held Credential, or false if s holds a Token.
func (s Secret) Credential() (Credential, bool) {
	if s.kind != KindCredential {
		return Credential{}, false
	}
	return s.credential, true
}

// Token returns the held Token, or false if s holds a Credential.
func (s Secret) Token() (Token, bool) {
	if s.kind != KindToken {
		return Token{}, false
	}
	return s.token, true
}

// Validate checks the held variant.
func (s Secret) Validate() error {
	switch s.kind {
	case KindCredential:
		return s.credential.Validate()
	case KindToken:
		return s.token.Validate()
	default:
		return autherr.InvalidArgument("secret", "holds neither a credential nor a token")
	}
}

func (s Secret) MarshalZerologObject(e *zerolog.Event) {
	e.Stringer("kind", s.kind)
	switch s.kind {
	case KindCredential:
		e.Object("credential", s.credential)
	case KindToken:
		e.Object("token", s.token)
	}
}
