// This command is only used for local testing: it serves a sign-in authority
// and host API that the credential helper can be pointed at with
// AUTHORITY_URL, without network access.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/authority/authoritytest"
	"github.com/chinmina/chinmina-git-credential/internal/observe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type Config struct {
	Port   int    `env:"FAKE_AUTHORITY_PORT, default=8089"`
	Tenant string `env:"FAKE_AUTHORITY_TENANT, default=11111111-2222-3333-4444-555555555555"`
	Code   string `env:"FAKE_AUTHORITY_CODE, default=test-authorization-code"`
	User   string `env:"FAKE_AUTHORITY_USER, default=user@example.com"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newCommand(&Config{}).Execute(); err != nil {
		log.Fatal().Err(err).Msg("fake authority failed")
	}
}

func newCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fakeauthority",
		Short: "Serve a local sign-in authority for testing the credential helper",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			// fields already set by flags are not overwritten
			return envconfig.Process(cmd.Context(), cfg)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *cfg)
		},
		SilenceUsage: true,
	}

	cmd.Flags().IntVar(&cfg.Port, "port", 0, "port to listen on")

	return cmd
}

func newHandler(cfg Config) http.Handler {
	fake := authoritytest.New()
	fake.Tenant = cfg.Tenant
	fake.Code = cfg.Code
	fake.User = cfg.User

	mux := observe.NewMux(http.NewServeMux(), "fakeauthority")
	fake.Register(mux)

	return mux
}

func serve(ctx context.Context, cfg Config) error {
	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler:           newHandler(cfg),
		ReadHeaderTimeout: 20 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://"+server.Addr).
		Str("code", cfg.Code).
		Msg("fake authority listening")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
