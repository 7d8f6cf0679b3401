package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chinmina/chinmina-git-credential/internal/audit"
	"github.com/chinmina/chinmina-git-credential/internal/authenticator"
	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/credentialhandler"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/rs/zerolog/log"
)

// CredentialHelper is the authenticator surface driven by the git credential
// commands.
type CredentialHelper interface {
	Acquire(ctx context.Context, t target.Target) authenticator.Result
	SetCredentials(ctx context.Context, t target.Target, c secret.Credential) error
	DeleteCredentials(ctx context.Context, t target.Target) error
}

// handleGet answers a git "get" request. A declined sign-in writes nothing,
// which tells git to try the next helper or ask the user itself.
func handleGet(ctx context.Context, helper CredentialHelper, in io.Reader, out io.Writer) error {
	ctx, entry := audit.Context(ctx)
	entry.Begin("get", nil)
	defer entry.End(ctx)()

	_, t, err := readRequest(entry, in)
	if err != nil {
		return err
	}

	result := helper.Acquire(ctx, t)
	if result.Failed() {
		if errors.Is(result.Err(), autherr.ErrPromptCancelled) {
			log.Info().Stringer("target", t).Msg("sign-in cancelled, no credential returned")
			return nil
		}
		return result.Err()
	}

	cred, _ := result.Credential()
	if err := credentialhandler.WriteProperties(credentialhandler.CredentialProperties(cred), out); err != nil {
		entry.Fail(audit.OutcomeFailed, "respond", err)
		return fmt.Errorf("failed to write credential response: %w", err)
	}

	return nil
}

// handleStore answers a git "store" request. Credentials are only ever
// acquired interactively, so an unsupported store is not a failure.
func handleStore(ctx context.Context, helper CredentialHelper, in io.Reader) error {
	ctx, entry := audit.Context(ctx)
	entry.Begin("store", nil)
	defer entry.End(ctx)()

	props, t, err := readRequest(entry, in)
	if err != nil {
		return err
	}

	cred, err := credentialhandler.CredentialFromProperties(props)
	if err != nil {
		entry.Fail(audit.OutcomeFailed, "request", err)
		return fmt.Errorf("invalid store request: %w", err)
	}

	err = helper.SetCredentials(ctx, t, cred)
	if errors.Is(err, autherr.ErrUnsupported) {
		entry.Outcome = audit.OutcomeUnsupported
		log.Debug().Stringer("target", t).Msg("store ignored")
		return nil
	}
	if err != nil {
		entry.Fail(audit.OutcomeFailed, "store", err)
		return err
	}

	entry.Outcome = audit.OutcomeSuccess
	return nil
}

// handleErase answers a git "erase" request, sent when git has been refused
// with the credential this helper returned.
func handleErase(ctx context.Context, helper CredentialHelper, in io.Reader) error {
	ctx, entry := audit.Context(ctx)
	entry.Begin("erase", nil)
	defer entry.End(ctx)()

	_, t, err := readRequest(entry, in)
	if err != nil {
		return err
	}

	if err := helper.DeleteCredentials(ctx, t); err != nil {
		entry.Fail(audit.OutcomeFailed, "erase", err)
		return fmt.Errorf("failed to erase credential for %s: %w", t, err)
	}

	entry.Outcome = audit.OutcomeSuccess
	return nil
}

func readRequest(entry *audit.Entry, in io.Reader) (*credentialhandler.ArrayMap, target.Target, error) {
	props, err := credentialhandler.ReadProperties(in)
	if err != nil {
		entry.Fail(audit.OutcomeFailed, "request", err)
		return nil, target.Target{}, fmt.Errorf("failed to read credential request: %w", err)
	}

	t, err := credentialhandler.TargetFromProperties(props)
	if err != nil {
		entry.Fail(audit.OutcomeFailed, "request", err)
		return nil, target.Target{}, fmt.Errorf("invalid credential request: %w", err)
	}

	entry.Target = t.String()
	return props, t, nil
}
