package credentialhandler

import (
	"errors"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
)

// TargetFromProperties builds the target described by git's attributes. A
// "url" attribute takes precedence over protocol, host and path.
func TargetFromProperties(m *ArrayMap) (target.Target, error) {
	if raw, ok := m.Get("url"); ok && raw != "" {
		return target.Parse(raw)
	}

	protocol, _ := m.Get("protocol")
	host, _ := m.Get("host")
	path, _ := m.Get("path")

	if protocol == "" || host == "" {
		return target.Target{}, autherr.InvalidArgument("target", "protocol and host attributes are required")
	}

	return target.FromProperties(protocol, host, path)
}

// CredentialFromProperties reads the username and password attributes git
// sends when asking a helper to store a credential.
func CredentialFromProperties(m *ArrayMap) (secret.Credential, error) {
	username, _ := m.Get("username")
	password, hasPassword := m.Get("password")

	if !hasPassword {
		return secret.Credential{}, errors.New("password attribute is required")
	}

	c := secret.Credential{Username: username, Password: password}
	return c, c.Validate()
}

// CredentialProperties renders a credential as the attributes returned to
// git from a get request.
func CredentialProperties(c secret.Credential) *ArrayMap {
	m := NewMap(2)
	m.Set("username", c.Username)
	m.Set("password", c.Password)
	return m
}
