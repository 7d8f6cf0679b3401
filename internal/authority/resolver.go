package authority

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/cache"
	"github.com/chinmina/chinmina-git-credential/internal/config"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	connectionDataPath = "/_apis/connectiondata"
	tenantHeader       = "X-VSS-ResourceTenant"
	emptyTenant        = "00000000-0000-0000-0000-000000000000"
	tenantCacheSize    = 256
)

// Resolver discovers the tenant that owns a host. Answers are cached per
// origin; failed lookups are not cached and fall back to "common".
type Resolver struct {
	http  *resty.Client
	cache cache.TTLCache[string]
}

// NewResolver creates a Resolver whose answers live for the configured TTL.
func NewResolver(cfg config.AuthorityConfig, transport http.RoundTripper) (*Resolver, error) {
	ttl := time.Duration(cfg.TenantCacheTTLSeconds) * time.Second

	memory, err := cache.NewMemory[string](ttl, tenantCacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		http:  newRestyClient(cfg, transport),
		cache: cache.NewInstrumented[string](memory, "tenant"),
	}, nil
}

// Tenant returns the tenant ID owning t's host, or "common" when the host
// does not say.
func (r *Resolver) Tenant(ctx context.Context, t target.Target) string {
	key := t.Origin()

	if tenant, found, err := r.cache.Get(ctx, key); err == nil && found {
		return tenant
	}

	resp, err := r.http.R().SetContext(ctx).Head(key + connectionDataPath)
	if err != nil {
		log.Warn().Err(err).Str("origin", key).Msg("tenant lookup failed, using common tenant")
		return defaultTenant
	}

	// The endpoint answers 401 to anonymous callers, still naming the tenant.
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		log.Warn().Int("status", resp.StatusCode()).Str("origin", key).Msg("tenant lookup failed, using common tenant")
		return defaultTenant
	}

	tenant := parseTenantHeader(resp.Header().Values(tenantHeader))

	log.Debug().Str("origin", key).Str("tenant", tenant).Msg("tenant resolved")

	if err := r.cache.Set(ctx, key, tenant); err != nil {
		log.Warn().Err(err).Str("origin", key).Msg("failed to cache tenant")
	}

	return tenant
}

// parseTenantHeader picks the first non-empty tenant from the header values,
// which may each hold a comma-separated list.
func parseTenantHeader(values []string) string {
	for _, v := range values {
		for _, candidate := range strings.Split(v, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate != "" && candidate != emptyTenant {
				return candidate
			}
		}
	}

	return defaultTenant
}

// Close releases the tenant cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}
