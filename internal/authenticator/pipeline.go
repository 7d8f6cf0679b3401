package authenticator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/audit"
	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/secret"
	"github.com/chinmina/chinmina-git-credential/internal/secretcache"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline stages, as reported in logs, spans and audit entries.
const (
	stageCheckCache = "check_cache"
	stagePrompt     = "prompt"
	stageExchange   = "exchange"
	stageMint       = "mint"
	stagePersist    = "persist"
)

// Acquire returns a credential for t. Cached credentials are returned
// directly; otherwise the user is prompted, the assertion is exchanged for a
// token, the token is minted into a credential and the credential persisted.
// Nothing is written unless the exchange and mint both succeed.
func (a *Interactive) Acquire(ctx context.Context, t target.Target) Result {
	if err := t.Validate(); err != nil {
		return failed(err)
	}

	if a.flights == nil {
		return a.acquire(ctx, t)
	}

	key := target.DefaultNamer(t, a.params.Namespace)
	led := false
	v, _, _ := a.flights.Do(key, func() (any, error) {
		led = true
		return a.acquire(ctx, t), nil
	})

	result := v.(Result)

	// Do reports shared for the leader too when others joined
	if !led {
		entry := audit.Log(ctx)
		entry.Joined = true
		if entry.Outcome == "" {
			entry.Source = string(result.Source())
			entry.Outcome = outcomeOf(result)
		}
		log.Debug().Stringer("target", t).Msg("joined in-flight acquisition")
	}

	return result
}

func (a *Interactive) acquire(ctx context.Context, t target.Target) Result {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "authenticator.acquire",
		trace.WithAttributes(attribute.String("acquire.target", t.String())),
	)
	defer span.End()

	entry := audit.Log(ctx)
	entry.Compact = a.params.RequireCompact

	result := a.run(ctx, span, t, entry)

	outcome := outcomeOf(result)
	if result.Failed() {
		span.SetStatus(codes.Error, result.Err().Error())
	}

	entry.Source = string(result.Source())
	if entry.Outcome == "" {
		entry.Outcome = outcome
	}

	span.SetAttributes(
		attribute.String("acquire.source", string(result.Source())),
		attribute.String("acquire.outcome", outcome),
	)
	recordAcquisition(ctx, result.Source(), outcome, time.Since(start))

	return result
}

func outcomeOf(r Result) string {
	switch {
	case !r.Failed():
		return audit.OutcomeSuccess
	case errors.Is(r.Err(), autherr.ErrPromptCancelled):
		return audit.OutcomeCancelled
	default:
		return audit.OutcomeFailed
	}
}

func (a *Interactive) run(ctx context.Context, span trace.Span, t target.Target, entry *audit.Entry) Result {
	if cred, source, ok := a.checkCache(ctx, span, t); ok {
		return succeeded(cred, source)
	}

	// prompt
	promptStart := time.Now()
	assertion, err := a.prompt.Prompt(ctx, t, fmt.Sprintf("Sign in to access %s.", t))
	entry.PromptDuration = time.Since(promptStart)
	if err == nil && assertion == "" {
		err = autherr.ErrPromptCancelled
	}
	if err != nil {
		perr := autherr.PromptError{Target: t.String(), Err: err}
		outcome := audit.OutcomeFailed
		if perr.Cancelled() {
			outcome = audit.OutcomeCancelled
		}
		a.transitionFailed(span, t, stagePrompt, perr)
		entry.Fail(outcome, stagePrompt, perr)
		return failed(perr)
	}
	a.transition(span, t, stagePrompt)

	// exchange
	exchangeStart := time.Now()
	tok, err := a.authority.AcquireToken(
		ctx, t, assertion,
		a.params.ClientID, a.params.ResourceID, a.params.RedirectURI,
		a.params.ExtraParams,
	)
	if err == nil {
		err = tok.Validate()
	}
	entry.ExchangeDuration = time.Since(exchangeStart)
	if err != nil {
		xerr := autherr.ExchangeError{Target: t.String(), Stage: autherr.StageAcquire, Err: err}
		a.transitionFailed(span, t, stageExchange, xerr)
		entry.Fail(audit.OutcomeFailed, stageExchange, xerr)
		return failed(xerr)
	}
	log.Info().Stringer("target", t).Object("token", tok).Msg("token exchange succeeded")
	a.transition(span, t, stageExchange)

	// mint
	mintStart := time.Now()
	cred, err := a.mint(ctx, t, tok)
	entry.MintDuration = time.Since(mintStart)
	if err != nil {
		a.transitionFailed(span, t, stageMint, err)
		entry.Fail(audit.OutcomeFailed, stageMint, err)
		return failed(err)
	}
	a.transition(span, t, stageMint)

	// persist
	if err := a.persist(ctx, t, cred); err != nil {
		a.transitionFailed(span, t, stagePersist, err)
		entry.Fail(audit.OutcomeFailed, stagePersist, err)
		return failed(err)
	}
	a.transition(span, t, stagePersist)

	return succeeded(cred, SourceInteractive)
}

// checkCache looks for a credential in memory, then the durable store, then
// for a token that can be minted without prompting. Store errors are treated
// as misses.
func (a *Interactive) checkCache(ctx context.Context, span trace.Span, t target.Target) (secret.Credential, Source, bool) {
	if cred, found := readCredential(ctx, a.cache, "memory", t); found {
		a.transition(span, t, stageCheckCache, attribute.String("acquire.source", string(SourceMemory)))
		return cred, SourceMemory, true
	}

	if a.durable != nil {
		if cred, found := readCredential(ctx, a.durable, "durable", t); found {
			if err := a.cache.WriteCredential(ctx, t, cred); err != nil {
				log.Warn().Err(err).Stringer("target", t).Msg("failed to warm memory cache from durable store")
			}
			a.transition(span, t, stageCheckCache, attribute.String("acquire.source", string(SourceDurable)))
			return cred, SourceDurable, true
		}
	}

	tok, found := a.readToken(ctx, t)
	if !found {
		a.transition(span, t, stageCheckCache, attribute.String("acquire.source", "miss"))
		return secret.Credential{}, SourceNone, false
	}

	cred, err := a.mint(ctx, t, tok)
	if err != nil {
		log.Warn().Err(err).Stringer("target", t).Msg("cached token could not be minted, discarding it")
		a.discardToken(ctx, t)
		a.transition(span, t, stageCheckCache, attribute.String("acquire.source", "miss"))
		return secret.Credential{}, SourceNone, false
	}

	if err := a.persist(ctx, t, cred); err != nil {
		log.Warn().Err(err).Stringer("target", t).Msg("failed to persist credential minted from cached token")
	}

	a.transition(span, t, stageCheckCache, attribute.String("acquire.source", string(SourceToken)))
	return cred, SourceToken, true
}

func readCredential(ctx context.Context, store secretcache.CredentialStore, name string, t target.Target) (secret.Credential, bool) {
	cred, found, err := store.ReadCredential(ctx, t)
	if err != nil {
		log.Warn().Err(err).Str("store", name).Stringer("target", t).Msg("credential read failed, treating as miss")
		return secret.Credential{}, false
	}
	return cred, found
}

func (a *Interactive) readToken(ctx context.Context, t target.Target) (secret.Token, bool) {
	tok, found, err := a.cache.ReadToken(ctx, t)
	if err != nil {
		log.Warn().Err(err).Str("store", "memory").Stringer("target", t).Msg("token read failed, treating as miss")
	}
	if found {
		return tok, true
	}

	if a.durable == nil {
		return secret.Token{}, false
	}

	tok, found, err = a.durable.ReadToken(ctx, t)
	if err != nil {
		log.Warn().Err(err).Str("store", "durable").Stringer("target", t).Msg("token read failed, treating as miss")
		return secret.Token{}, false
	}

	return tok, found
}

func (a *Interactive) discardToken(ctx context.Context, t target.Target) {
	if err := a.cache.DeleteToken(ctx, t); err != nil {
		log.Warn().Err(err).Stringer("target", t).Msg("failed to discard token from memory cache")
	}
	if a.durable != nil {
		if err := a.durable.DeleteToken(ctx, t); err != nil {
			log.Warn().Err(err).Stringer("target", t).Msg("failed to discard token from durable store")
		}
	}
}

// mint converts a token into a reusable credential.
func (a *Interactive) mint(ctx context.Context, t target.Target, tok secret.Token) (secret.Credential, error) {
	cred, err := a.authority.GeneratePersonalAccessToken(ctx, t, tok, a.params.RequireCompact)
	if err == nil {
		err = cred.Validate()
	}
	if err != nil {
		return secret.Credential{}, autherr.ExchangeError{Target: t.String(), Stage: autherr.StageMint, Err: err}
	}

	return cred, nil
}

// persist writes to memory, then the durable store. Only the memory write
// can fail the pipeline.
func (a *Interactive) persist(ctx context.Context, t target.Target, cred secret.Credential) error {
	if err := a.cache.WriteCredential(ctx, t, cred); err != nil {
		return fmt.Errorf("failed to cache credential: %w", err)
	}

	if a.durable != nil {
		if err := a.durable.WriteCredential(ctx, t, cred); err != nil {
			log.Warn().Err(err).Stringer("target", t).Msg("failed to write credential to durable store")
		}
	}

	return nil
}

func (a *Interactive) transition(span trace.Span, t target.Target, stage string, attrs ...attribute.KeyValue) {
	log.Debug().Stringer("target", t).Str("stage", stage).Msg("acquisition stage complete")
	span.AddEvent(stage, trace.WithAttributes(attrs...))
}

func (a *Interactive) transitionFailed(span trace.Span, t target.Target, stage string, err error) {
	log.Warn().Err(err).Stringer("target", t).Str("stage", stage).Msg("acquisition failed")
	span.AddEvent(stage, trace.WithAttributes(
		attribute.Bool("acquire.failed", true),
		attribute.String("acquire.error", err.Error()),
	))
}
