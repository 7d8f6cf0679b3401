package durable

import (
	"encoding/json"
	"fmt"

	"github.com/chinmina/chinmina-git-credential/internal/secret"
)

// record is the serialized form of a secret in a durable backend.
type record struct {
	Kind      string `json:"kind"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	TokenType string `json:"tokenType,omitempty"`
	Value     string `json:"value,omitempty"`
}

func encode(s secret.Secret) ([]byte, error) {
	r := record{Kind: s.Kind().String()}

	switch s.Kind() {
	case secret.KindCredential:
		c, _ := s.Credential()
		r.Username = c.Username
		r.Password = c.Password
	case secret.KindToken:
		t, _ := s.Token()
		r.TokenType = t.Type.String()
		r.Value = t.Value
	default:
		return nil, fmt.Errorf("cannot encode secret of kind %s", s.Kind())
	}

	return json.Marshal(r)
}

func decode(data []byte) (secret.Secret, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return secret.Secret{}, fmt.Errorf("failed to unmarshal stored secret: %w", err)
	}

	kind, err := secret.ParseKind(r.Kind)
	if err != nil {
		return secret.Secret{}, fmt.Errorf("stored secret: %w", err)
	}

	var s secret.Secret
	if kind == secret.KindCredential {
		s = secret.FromCredential(secret.Credential{Username: r.Username, Password: r.Password})
	} else {
		tokenType, err := secret.ParseTokenType(r.TokenType)
		if err != nil {
			return secret.Secret{}, fmt.Errorf("stored secret: %w", err)
		}
		s = secret.FromToken(secret.Token{Type: tokenType, Value: r.Value})
	}

	if err := s.Validate(); err != nil {
		return secret.Secret{}, fmt.Errorf("stored secret: %w", err)
	}

	return s, nil
}
