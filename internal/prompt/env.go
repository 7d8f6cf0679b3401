package prompt

import (
	"context"
	"os"
	"strings"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/rs/zerolog/log"
)

// Env reads the assertion from an environment variable, for unattended use
// where a code has been obtained ahead of time. An unset or blank variable is
// a cancellation.
type Env struct {
	variable string
	lookup   func(string) (string, bool)
}

func NewEnv(variable string) *Env {
	return &Env{
		variable: variable,
		lookup:   os.LookupEnv,
	}
}

func (p *Env) Prompt(ctx context.Context, t target.Target, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, ok := p.lookup(p.variable)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		log.Info().
			Stringer("target", t).
			Str("variable", p.variable).
			Msg("assertion variable not set, skipping sign-in")
		return "", autherr.ErrPromptCancelled
	}

	return value, nil
}
