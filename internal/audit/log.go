// Package audit records one structured entry per credential operation,
// describing where the credential came from and how the operation ended.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the level audit entries are written at. It is above all standard
// levels so entries survive any configured filtering.
const Level = zerolog.Level(20)

const levelName = "audit"

func init() {
	defaultMarshal := zerolog.LevelFieldMarshalFunc
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if l == Level {
			return levelName
		}
		return defaultMarshal(l)
	}
}

// Outcome values.
const (
	OutcomeSuccess     = "success"
	OutcomeMiss        = "miss"
	OutcomeCancelled   = "cancelled"
	OutcomeFailed      = "failed"
	OutcomeUnsupported = "unsupported"
)

// Entry is the audit record for a single operation.
type Entry struct {
	Operation string
	Target    string
	Namespace string
	Duration  time.Duration

	// Source is where a returned credential came from: memory, durable,
	// token or interactive.
	Source  string
	Outcome string

	// Stage names the pipeline step that failed, if any.
	Stage string
	Error string

	PromptDuration   time.Duration
	ExchangeDuration time.Duration
	MintDuration     time.Duration

	Compact bool
	Joined  bool

	start time.Time
}

func (e *Entry) MarshalZerologObject(event *zerolog.Event) {
	request := zerolog.Dict().
		Str("operation", e.Operation).
		Str("target", e.Target).
		Dur("duration", e.Duration)
	if e.Namespace != "" {
		request.Str("namespace", e.Namespace)
	}
	event.Dict("request", request)

	newSparseDict().
		Str("outcome", e.Outcome).
		Str("source", e.Source).
		Str("stage", e.Stage).
		Flag("compact", e.Compact).
		Flag("joined", e.Joined).
		AttachTo(event, "result")

	newSparseDict().
		Dur("prompt", e.PromptDuration).
		Dur("exchange", e.ExchangeDuration).
		Dur("mint", e.MintDuration).
		AttachTo(event, "timing")

	if e.Error != "" {
		event.Str("error", e.Error)
	}
}

// Begin marks the start of an operation.
func (e *Entry) Begin(operation string, target fmt.Stringer) {
	e.Operation = operation
	if target != nil {
		e.Target = target.String()
	}
	e.start = time.Now()
}

// Fail records the failed stage and error.
func (e *Entry) Fail(outcome, stage string, err error) {
	e.Outcome = outcome
	e.Stage = stage
	if err != nil {
		e.Error = err.Error()
	}
}

// End returns a function to be deferred, writing the entry when the operation
// completes. A panic is recorded in the entry and then re-raised.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		if r := recover(); r != nil {
			if e.Error != "" {
				e.Error += "; "
			}
			e.Error += fmt.Sprintf("panic: %v", r)
			defer panic(r)
		}

		if !e.start.IsZero() {
			e.Duration = time.Since(e.start)
		}

		logger := zerolog.Ctx(ctx)
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}

		logger.WithLevel(Level).EmbedObject(e).Msg("audit_event")
	}
}

type key struct{}

var entryKey = key{}

// Context returns the entry attached to ctx, attaching a new one if absent.
func Context(ctx context.Context) (context.Context, *Entry) {
	if e, ok := ctx.Value(entryKey).(*Entry); ok {
		return ctx, e
	}

	e := &Entry{}
	return context.WithValue(ctx, entryKey, e), e
}

// Log returns the entry attached to ctx. Without one, a detached entry is
// returned so callers can record unconditionally.
func Log(ctx context.Context) *Entry {
	if e, ok := ctx.Value(entryKey).(*Entry); ok {
		return e
	}
	return &Entry{}
}
