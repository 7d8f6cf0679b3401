// Package shutdown releases process resources when a helper invocation ends.
package shutdown

import (
	"context"
	"io"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Hooks run in reverse registration order, so resources are released before
// the telemetry that observed them is flushed. A failing hook does not stop
// the others.
type Hooks struct {
	hooks []hook
}

// AddContext registers a hook that receives the shutdown context. Nil hooks
// are ignored.
func (h *Hooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// AddCloser registers a resource's Close method.
func (h *Hooks) AddCloser(name string, closer io.Closer) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil closer; ignoring")
		return
	}

	h.AddContext(name, func(context.Context) error {
		return closer.Close()
	})
}

// Run executes all hooks and returns the number that failed.
func (h *Hooks) Run(ctx context.Context) int {
	failures := 0

	for i := len(h.hooks) - 1; i >= 0; i-- {
		hk := h.hooks[i]
		hookLog := log.Ctx(ctx).With().Str("hook", hk.name).Logger()

		if err := hk.fn(ctx); err != nil {
			failures++
			hookLog.Warn().Err(err).Msg("shutdown failed")
			continue
		}

		hookLog.Debug().Msg("shutdown complete")
	}

	return failures
}
