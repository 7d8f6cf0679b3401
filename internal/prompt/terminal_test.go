package prompt

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/chinmina/chinmina-git-credential/internal/autherr"
	"github.com/chinmina/chinmina-git-credential/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

type staticURL string

func (s staticURL) AuthorizeURL(context.Context, target.Target) (string, error) {
	return string(s), nil
}

type failingURL struct{}

func (failingURL) AuthorizeURL(context.Context, target.Target) (string, error) {
	return "", errors.New("authority unavailable")
}

// fakeTerminal backs the prompt with a regular file and scripted input.
func fakeTerminal(t *testing.T, urls URLSource, input string, readErr error) (*Terminal, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	p := NewTerminal(urls)
	p.openTTY = func() (*os.File, error) {
		return os.OpenFile(path, os.O_RDWR, 0)
	}
	p.isTerminal = func(int) bool { return true }
	p.readSecret = func(int) ([]byte, error) {
		return []byte(input), readErr
	}
	p.saveState = func(int) (*term.State, error) { return &term.State{}, nil }
	p.restoreState = func(int, *term.State) error { return nil }

	return p, path
}

func testTarget(t *testing.T) target.Target {
	t.Helper()
	tt, err := target.Parse("https://dev.azure.com/org")
	require.NoError(t, err)
	return tt
}

func TestTerminal_ReadsCode(t *testing.T) {
	p, path := fakeTerminal(t, staticURL("https://login.example.com/authorize"), "  the-code \n", nil)

	code, err := p.Prompt(context.Background(), testTarget(t), "Sign in to dev.azure.com")
	require.NoError(t, err)
	assert.Equal(t, "the-code", code)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "Sign in to dev.azure.com")
	assert.Contains(t, string(written), "https://login.example.com/authorize")
}

func TestTerminal_Cancellation(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		readErr error
	}{
		{name: "empty input", input: "\n"},
		{name: "end of input", readErr: io.EOF},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := fakeTerminal(t, staticURL("https://login.example.com"), tc.input, tc.readErr)

			_, err := p.Prompt(context.Background(), testTarget(t), "msg")
			assert.ErrorIs(t, err, autherr.ErrPromptCancelled)
		})
	}
}

func TestTerminal_ContextCancelled(t *testing.T) {
	p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "code", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Prompt(ctx, testTarget(t), "msg")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerminal_ContextCancelledWhileReading(t *testing.T) {
	p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	p.readSecret = func(int) ([]byte, error) {
		cancel()
		<-release
		return nil, io.EOF
	}

	_, err := p.Prompt(ctx, testTarget(t), "msg")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, autherr.ErrPromptCancelled)
}

func TestTerminal_InterruptRestoresTerminal(t *testing.T) {
	p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "", nil)

	saved := &term.State{}
	p.saveState = func(int) (*term.State, error) { return saved, nil }

	var restored *term.State
	p.restoreState = func(_ int, state *term.State) error {
		restored = state
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	reading := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	p.readSecret = func(int) ([]byte, error) {
		close(reading)
		<-release
		return nil, io.EOF
	}

	go func() {
		<-reading
		cancel()
	}()

	_, err := p.Prompt(ctx, testTarget(t), "msg")
	require.ErrorIs(t, err, autherr.ErrPromptCancelled)
	assert.Same(t, saved, restored)
}

func TestTerminal_Failures(t *testing.T) {
	t.Run("not a terminal", func(t *testing.T) {
		p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "code", nil)
		p.isTerminal = func(int) bool { return false }

		_, err := p.Prompt(context.Background(), testTarget(t), "msg")
		assert.ErrorIs(t, err, ErrNoTerminal)
	})

	t.Run("no tty", func(t *testing.T) {
		p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "code", nil)
		p.openTTY = func() (*os.File, error) { return nil, os.ErrNotExist }

		_, err := p.Prompt(context.Background(), testTarget(t), "msg")
		assert.ErrorIs(t, err, ErrNoTerminal)
	})

	t.Run("sign-in URL unavailable", func(t *testing.T) {
		p, _ := fakeTerminal(t, failingURL{}, "code", nil)

		_, err := p.Prompt(context.Background(), testTarget(t), "msg")
		assert.ErrorContains(t, err, "authority unavailable")
		assert.NotErrorIs(t, err, autherr.ErrPromptCancelled)
	})

	t.Run("terminal state unavailable", func(t *testing.T) {
		p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "code", nil)
		p.saveState = func(int) (*term.State, error) { return nil, errors.New("not a tty") }

		_, err := p.Prompt(context.Background(), testTarget(t), "msg")
		assert.ErrorContains(t, err, "failed to read terminal state")
	})

	t.Run("read error", func(t *testing.T) {
		p, _ := fakeTerminal(t, staticURL("https://login.example.com"), "", errors.New("device gone"))

		_, err := p.Prompt(context.Background(), testTarget(t), "msg")
		assert.ErrorContains(t, err, "device gone")
		assert.NotErrorIs(t, err, autherr.ErrPromptCancelled)
	})
}
