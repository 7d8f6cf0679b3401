// Package prompt obtains the identity assertion (an authorization code) that
// the authenticator exchanges for a token.
package prompt

import (
	"context"
	"fmt"

	"github.com/chinmina/chinmina-git-credential/internal/config"
	"github.com/chinmina/chinmina-git-credential/internal/target"
)

// Prompter asks for an assertion for a target. Cancellation is reported as
// autherr.ErrPromptCancelled.
type Prompter interface {
	Prompt(ctx context.Context, t target.Target, message string) (string, error)
}

// URLSource supplies the sign-in page a user visits to obtain a code.
type URLSource interface {
	AuthorizeURL(ctx context.Context, t target.Target) (string, error)
}

// New creates the prompt selected by configuration.
func New(cfg config.PromptConfig, urls URLSource) (Prompter, error) {
	switch cfg.Mode {
	case "terminal":
		return NewTerminal(urls), nil
	case "env":
		return NewEnv(cfg.AssertionVariable), nil
	default:
		return nil, fmt.Errorf("invalid prompt mode %q", cfg.Mode)
	}
}
