package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/authenticator"
	"github.com/chinmina/chinmina-git-credential/internal/authority"
	"github.com/chinmina/chinmina-git-credential/internal/config"
	"github.com/chinmina/chinmina-git-credential/internal/durable"
	"github.com/chinmina/chinmina-git-credential/internal/observe"
	"github.com/chinmina/chinmina-git-credential/internal/prompt"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/chinmina/chinmina-git-credential/internal/shutdown"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// launcher builds the helper for a single invocation. Hooks are returned even
// when construction fails, so partially created resources are released.
type launcher func(ctx context.Context) (CredentialHelper, *shutdown.Hooks, error)

func main() {
	configureLogging()

	// An interrupt cancels the invocation instead of killing it, so a prompt
	// can restore the terminal and shutdown hooks still run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCommand(launch).ExecuteContext(ctx)
	stop()

	if err != nil {
		log.Error().Err(err).Msg("credential helper failed")
		os.Exit(1)
	}
}

func newRootCommand(launch launcher) *cobra.Command {
	root := &cobra.Command{
		Use:   "git-credential-chinmina",
		Short: "Git credential helper that signs in interactively and mints personal access tokens",
		Long: `git-credential-chinmina answers git's credential helper protocol. On "get"
it returns a cached credential or prompts for a sign-in code, exchanges it with
the configured authority and mints a personal access token for the host.

Configure it with:
  git config --global credential.helper chinmina`,
		// git may send operations this helper does not know; those are ignored.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				log.Debug().Str("operation", args[0]).Msg("ignoring unsupported operation")
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRun: func(*cobra.Command, []string) {
			logBuildInfo()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		helperCommand(launch, "get", "Return a credential for the requested target",
			func(ctx context.Context, helper CredentialHelper, cmd *cobra.Command) error {
				return handleGet(ctx, helper, cmd.InOrStdin(), cmd.OutOrStdout())
			}),
		helperCommand(launch, "store", "Accept a credential git has confirmed works",
			func(ctx context.Context, helper CredentialHelper, cmd *cobra.Command) error {
				return handleStore(ctx, helper, cmd.InOrStdin())
			}),
		helperCommand(launch, "erase", "Forget the credential for the requested target",
			func(ctx context.Context, helper CredentialHelper, cmd *cobra.Command) error {
				return handleErase(ctx, helper, cmd.InOrStdin())
			}),
	)

	return root
}

func helperCommand(
	launch launcher,
	use, short string,
	handle func(ctx context.Context, helper CredentialHelper, cmd *cobra.Command) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			helper, hooks, err := launch(ctx)
			defer runShutdown(ctx, hooks)
			if err != nil {
				return err
			}

			return handle(ctx, helper, cmd)
		},
	}
}

func runShutdown(ctx context.Context, hooks *shutdown.Hooks) {
	if hooks == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	hooks.Run(ctx)
}

func launch(ctx context.Context) (CredentialHelper, *shutdown.Hooks, error) {
	hooks := &shutdown.Hooks{}

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, hooks, fmt.Errorf("configuration load failed: %w", err)
	}

	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return nil, hooks, fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	hooks.AddContext("telemetry", shutdownTelemetry)

	transport := observe.HTTPTransport(configureHTTPTransport(), cfg.Observe)

	var clientOpts []authority.ClientOption
	if cfg.Authority.DetectTenant {
		resolver, err := authority.NewResolver(cfg.Authority, transport)
		if err != nil {
			return nil, hooks, fmt.Errorf("tenant resolver configuration failed: %w", err)
		}
		hooks.AddCloser("tenant-cache", resolver)
		clientOpts = append(clientOpts, authority.WithResolver(resolver))
	}

	client, err := authority.New(cfg.Authority, transport, clientOpts...)
	if err != nil {
		return nil, hooks, fmt.Errorf("authority configuration failed: %w", err)
	}

	prompter, err := prompt.New(cfg.Prompt, client)
	if err != nil {
		return nil, hooks, fmt.Errorf("prompt configuration failed: %w", err)
	}

	cache := secretcache.NewInstrumented(
		secretcache.New(secretcache.WithNamespace(cfg.Cache.Namespace)),
		"memory",
	)

	durableStore, err := durable.Open(cfg.Cache.Durable, cfg.Cache.Namespace)
	if err != nil {
		return nil, hooks, fmt.Errorf("durable store configuration failed: %w", err)
	}

	opts := []authenticator.Option{authenticator.WithDurableStore(durableStore)}
	if cfg.Acquire.SingleFlight {
		opts = append(opts, authenticator.WithSingleFlight())
	}

	helper := authenticator.New(cache, prompter, client, authenticator.Params{
		ClientID:       cfg.Authority.ClientID,
		ResourceID:     cfg.Authority.ResourceID,
		RedirectURI:    cfg.Authority.RedirectURI,
		ExtraParams:    cfg.Authority.ExtraParams,
		RequireCompact: cfg.Acquire.RequireCompactToken,
		Namespace:      cfg.Cache.Namespace,
	}, opts...)

	return helper, hooks, nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// stdout carries the credential protocol, so logs always go to stderr
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.WarnLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Debug()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Str("go_version", buildInfo.GoVersion).Msg("build information")
}

func configureHTTPTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// one invocation talks to at most the authority and one host
	transport.MaxIdleConns = 4
	transport.MaxConnsPerHost = 4

	return transport
}
