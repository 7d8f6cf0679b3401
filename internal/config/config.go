package config

import (
	"context"
	"fmt"
	"slices"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Acquire   AcquireConfig
	Authority AuthorityConfig
	Cache     CacheConfig
	Observe   ObserveConfig
	Prompt    PromptConfig
}

// AcquireConfig controls the interactive acquisition pipeline.
type AcquireConfig struct {
	// RequireCompactToken asks the authority for a compact personal access
	// token rather than a self-describing one.
	RequireCompactToken bool `env:"ACQUIRE_COMPACT_TOKEN, default=false"`

	// SingleFlight joins concurrent acquisitions for the same target onto a
	// single prompt.
	SingleFlight bool `env:"ACQUIRE_SINGLE_FLIGHT, default=false"`
}

// AuthorityConfig describes the identity authority and the application
// registration used for sign-in.
type AuthorityConfig struct {
	URL         string            `env:"AUTHORITY_URL, default=https://login.microsoftonline.com"`
	ClientID    string            `env:"AUTHORITY_CLIENT_ID, default=872cd9fa-d31f-45e0-9eab-6e460a02d1f1"`
	ResourceID  string            `env:"AUTHORITY_RESOURCE_ID, default=499b84ac-1321-427f-aa17-267ca6975798"`
	RedirectURI string            `env:"AUTHORITY_REDIRECT_URI, default=urn:ietf:wg:oauth:2.0:oob"`
	ExtraParams map[string]string `env:"AUTHORITY_EXTRA_PARAMS"`
	TokenScope  string            `env:"AUTHORITY_TOKEN_SCOPE, default=vso.code_write"`

	// DetectTenant queries the target host for the tenant that owns it, and
	// signs in against that tenant instead of "common".
	DetectTenant          bool `env:"AUTHORITY_DETECT_TENANT, default=true"`
	TenantCacheTTLSeconds int  `env:"AUTHORITY_TENANT_CACHE_TTL_SECS, default=3600"`

	TimeoutSeconds    int     `env:"AUTHORITY_TIMEOUT_SECS, default=30"`
	RetryCount        int     `env:"AUTHORITY_RETRY_COUNT, default=0"`
	RequestsPerSecond float64 `env:"AUTHORITY_REQUESTS_PER_SECOND, default=5"`
}

// CacheConfig specifies how secrets are keyed and where they persist.
type CacheConfig struct {
	// Namespace prefixes every key written by this helper.
	Namespace string `env:"CACHE_NAMESPACE, default=git"`

	Durable DurableConfig
}

// DurableConfig selects an optional store that outlives the process.
type DurableConfig struct {
	// Type is one of "none", "keyring" (99designs keyring) or "system"
	// (platform secret service).
	Type string `env:"DURABLE_STORE_TYPE, default=none"`

	// Service names the keyring service/collection that entries are kept in.
	Service string `env:"DURABLE_STORE_SERVICE, default=chinmina-git-credential"`

	// KeyringBackends restricts the keyring backends that may be opened, for
	// example "file" or "keychain". Empty allows all.
	KeyringBackends []string `env:"DURABLE_KEYRING_BACKENDS"`

	// KeyringFileDir and KeyringFilePassword configure the encrypted file
	// backend.
	KeyringFileDir      string `env:"DURABLE_KEYRING_FILE_DIR"`
	KeyringFilePassword string `env:"DURABLE_KEYRING_FILE_PASSWORD"`
}

// PromptConfig selects how the identity assertion is obtained.
type PromptConfig struct {
	// Mode is "terminal" (interactive) or "env" (read from a variable).
	Mode string `env:"PROMPT_MODE, default=terminal"`

	// AssertionVariable names the variable read in "env" mode.
	AssertionVariable string `env:"PROMPT_ASSERTION_VARIABLE, default=CHINMINA_AUTH_CODE"`
}

type ObserveConfig struct {
	SDKLogLevel               string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                   bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled            bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                      string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName               string `env:"OBSERVE_SERVICE_NAME, default=chinmina-git-credential"`
	TraceBatchTimeoutSeconds  int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=5"`
	MetricReadIntervalSeconds int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled      bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Authority.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid authority configuration: %w", err)
	}

	if err := cfg.Cache.Durable.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid durable store configuration: %w", err)
	}

	if err := cfg.Prompt.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid prompt configuration: %w", err)
	}

	if err := cfg.Observe.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid observe configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the authority configuration is usable.
func (c *AuthorityConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("AUTHORITY_URL must not be empty")
	}
	if c.ClientID == "" {
		return fmt.Errorf("AUTHORITY_CLIENT_ID must not be empty")
	}
	if c.ResourceID == "" {
		return fmt.Errorf("AUTHORITY_RESOURCE_ID must not be empty")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("AUTHORITY_RETRY_COUNT must not be negative")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("AUTHORITY_REQUESTS_PER_SECOND must be positive")
	}

	return nil
}

var durableTypes = []string{"none", "keyring", "system"}

// Validate checks that the durable store configuration is valid.
func (c *DurableConfig) Validate() error {
	if !slices.Contains(durableTypes, c.Type) {
		return fmt.Errorf("invalid durable store type %q: must be one of %v", c.Type, durableTypes)
	}

	if c.Type != "none" && c.Service == "" {
		return fmt.Errorf("DURABLE_STORE_SERVICE required when DURABLE_STORE_TYPE=%s", c.Type)
	}

	// The file backend cannot prompt for its password: stdin belongs to git.
	if slices.Contains(c.KeyringBackends, "file") && c.KeyringFilePassword == "" {
		return fmt.Errorf("DURABLE_KEYRING_FILE_PASSWORD required when the file keyring backend is allowed")
	}

	return nil
}

// Validate checks the prompt mode.
func (c *PromptConfig) Validate() error {
	switch c.Mode {
	case "terminal":
		return nil
	case "env":
		if c.AssertionVariable == "" {
			return fmt.Errorf("PROMPT_ASSERTION_VARIABLE required when PROMPT_MODE=env")
		}
		return nil
	default:
		return fmt.Errorf("invalid prompt mode %q: must be either \"terminal\" or \"env\"", c.Mode)
	}
}

// Validate checks the exporter type when telemetry is enabled.
func (c *ObserveConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Type != "grpc" && c.Type != "stdout" {
		return fmt.Errorf("invalid observe type %q: must be either \"grpc\" or \"stdout\"", c.Type)
	}

	return nil
}
