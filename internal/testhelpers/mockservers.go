package testhelpers

import (
	"net/http/httptest"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/authority/authoritytest"
	"github.com/chinmina/chinmina-git-credential/internal/config"
)

// MockAuthority is a running fake authority that also serves the target
// host API, so targets should be built from URL.
type MockAuthority struct {
	*authoritytest.Server
	URL string
}

// SetupMockAuthority starts a fake authority server, closed when the test
// ends.
func SetupMockAuthority(t *testing.T) *MockAuthority {
	t.Helper()

	fake := authoritytest.New()
	server := httptest.NewServer(fake.Handler())
	t.Cleanup(server.Close)

	return &MockAuthority{
		Server: fake,
		URL:    server.URL,
	}
}

// AuthorityConfig returns configuration pointing at the mock, with limits
// relaxed for tests.
func (m *MockAuthority) AuthorityConfig() config.AuthorityConfig {
	return config.AuthorityConfig{
		URL:                   m.URL,
		ClientID:              "test-client",
		ResourceID:            "test-resource",
		RedirectURI:           "urn:ietf:wg:oauth:2.0:oob",
		TokenScope:            "vso.code_write",
		DetectTenant:          true,
		TenantCacheTTLSeconds: 60,
		TimeoutSeconds:        5,
		RequestsPerSecond:     100,
	}
}
