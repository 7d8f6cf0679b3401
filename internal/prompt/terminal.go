package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const ttyPath = "/dev/tty"

// ErrNoTerminal is returned when no controlling terminal is available. Git
// owns stdin and stdout, so the prompt cannot fall back to them.
var ErrNoTerminal = errors.New("no terminal available for interactive sign-in")

// Terminal prompts on the controlling terminal, reading the code with echo
// disabled. Calls are serialized so only one prompt is shown at a time.
type Terminal struct {
	mu   sync.Mutex
	urls URLSource

	openTTY      func() (*os.File, error)
	isTerminal   func(fd int) bool
	readSecret   func(fd int) ([]byte, error)
	saveState    func(fd int) (*term.State, error)
	restoreState func(fd int, state *term.State) error
}

func NewTerminal(urls URLSource) *Terminal {
	return &Terminal{
		urls: urls,
		openTTY: func() (*os.File, error) {
			return os.OpenFile(ttyPath, os.O_RDWR, 0)
		},
		isTerminal:   term.IsTerminal,
		readSecret:   term.ReadPassword,
		saveState:    term.GetState,
		restoreState: term.Restore,
	}
}

type readResult struct {
	value []byte
	err   error
}

func (p *Terminal) Prompt(ctx context.Context, t target.Target, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	tty, err := p.openTTY()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoTerminal, err)
	}
	defer tty.Close()

	fd := int(tty.Fd())
	if !p.isTerminal(fd) {
		return "", ErrNoTerminal
	}

	signInURL, err := p.urls.AuthorizeURL(ctx, t)
	if err != nil {
		return "", fmt.Errorf("could not determine sign-in page: %w", err)
	}

	if _, err := fmt.Fprintf(tty, "%s\nSign in at:\n\n  %s\n\nthen paste the authorization code (empty to cancel): ", message, signInURL); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	// ReadPassword disables echo; an abandoned read must not leave it off.
	state, err := p.saveState(fd)
	if err != nil {
		return "", fmt.Errorf("failed to read terminal state: %w", err)
	}

	results := make(chan readResult, 1)
	go func() {
		value, err := p.readSecret(fd)
		results <- readResult{value: value, err: err}
	}()

	var res readResult
	select {
	case <-ctx.Done():
		// the reader goroutine ends when the terminal is closed or input arrives
		if err := p.restoreState(fd, state); err != nil {
			log.Warn().Err(err).Msg("failed to restore terminal state")
		}
		_, _ = fmt.Fprintln(tty)
		return "", fmt.Errorf("%w: %w", autherr.ErrPromptCancelled, ctx.Err())
	case res = <-results:
	}

	_, _ = fmt.Fprintln(tty)

	if errors.Is(res.err, io.EOF) {
		return "", autherr.ErrPromptCancelled
	}
	if res.err != nil {
		return "", fmt.Errorf("failed to read authorization code: %w", res.err)
	}

	code := strings.TrimSpace(string(res.value))
	if code == "" {
		log.Debug().Stringer("target", t).Msg("empty authorization code, treating as cancellation")
		return "", autherr.ErrPromptCancelled
	}

	return code, nil
}
