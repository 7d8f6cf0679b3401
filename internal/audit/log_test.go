package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chinmina/chinmina-git-credential/internal/audit"
	"github.com/chinmina/chinmina-git-credential/internal/testhelpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestContext(t *testing.T) {
	ctx, entry := audit.Context(context.Background())
	entry.Source = "memory"

	ctx2, entry2 := audit.Context(ctx)
	assert.Same(t, entry, entry2)
	assert.Equal(t, ctx, ctx2)
	assert.Same(t, entry, audit.Log(ctx))
}

func TestLog_WithoutEntry(t *testing.T) {
	entry := audit.Log(context.Background())
	require.NotNil(t, entry)

	entry.Outcome = audit.OutcomeSuccess
	assert.NotSame(t, entry, audit.Log(context.Background()))
}

func TestEnd_WritesEntry(t *testing.T) {
	testhelpers.SetupLogger(t)

	var written []zerolog.Level
	ctx := withLogHook(context.Background(), zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
		written = append(written, level)
	}))

	ctx, entry := audit.Context(ctx)
	entry.Begin("get", stringer("https://dev.azure.com/org"))
	entry.Outcome = audit.OutcomeSuccess
	entry.End(ctx)()

	assert.Equal(t, []zerolog.Level{audit.Level}, written)
	assert.Equal(t, "get", entry.Operation)
	assert.Equal(t, "https://dev.azure.com/org", entry.Target)
	assert.Positive(t, entry.Duration)
}

func TestEnd_RecordsPanic(t *testing.T) {
	testhelpers.SetupLogger(t)

	written := false
	ctx := withLogHook(context.Background(), zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
		if level == audit.Level {
			written = true
		}
	}))

	ctx, entry := audit.Context(ctx)

	assert.PanicsWithValue(t, "prompt exploded", func() {
		defer entry.End(ctx)()
		entry.Error = "failure pre-panic"
		panic("prompt exploded")
	})

	assert.Equal(t, "failure pre-panic; panic: prompt exploded", entry.Error)
	assert.True(t, written, "audit log entry should be written")
}

func TestFail(t *testing.T) {
	entry := &audit.Entry{}
	entry.Fail(audit.OutcomeFailed, "exchange", errors.New("invalid_grant"))

	assert.Equal(t, audit.OutcomeFailed, entry.Outcome)
	assert.Equal(t, "exchange", entry.Stage)
	assert.Equal(t, "invalid_grant", entry.Error)
}

func TestLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.WithLevel(audit.Level).Msg("x")

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, "audit", result["level"])
}

func serialize(t *testing.T, entry audit.Entry) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Log().EmbedObject(&entry).Send()

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	return result
}

func TestNestedDictSerialization(t *testing.T) {
	result := serialize(t, audit.Entry{
		Operation:        "get",
		Target:           "https://dev.azure.com/org",
		Namespace:        "git",
		Duration:         2 * time.Second,
		Source:           "interactive",
		Outcome:          audit.OutcomeSuccess,
		PromptDuration:   1500 * time.Millisecond,
		ExchangeDuration: 300 * time.Millisecond,
		MintDuration:     200 * time.Millisecond,
		Compact:          true,
	})

	t.Run("request fields nested", func(t *testing.T) {
		request, ok := result["request"].(map[string]any)
		require.True(t, ok, "expected 'request' dict in log output")
		assert.Equal(t, "get", request["operation"])
		assert.Equal(t, "https://dev.azure.com/org", request["target"])
		assert.Equal(t, "git", request["namespace"])
		assert.Equal(t, float64(2000), request["duration"])
	})

	t.Run("result fields nested", func(t *testing.T) {
		res, ok := result["result"].(map[string]any)
		require.True(t, ok, "expected 'result' dict in log output")
		assert.Equal(t, "success", res["outcome"])
		assert.Equal(t, "interactive", res["source"])
		assert.Equal(t, true, res["compact"])
		assert.NotContains(t, res, "stage")
	})

	t.Run("timing fields nested", func(t *testing.T) {
		timing, ok := result["timing"].(map[string]any)
		require.True(t, ok, "expected 'timing' dict in log output")
		assert.Equal(t, float64(1500), timing["prompt"])
		assert.Equal(t, float64(300), timing["exchange"])
		assert.Equal(t, float64(200), timing["mint"])
	})

	t.Run("error omitted when empty", func(t *testing.T) {
		assert.NotContains(t, result, "error")
	})
}

func TestOptionalDictElision(t *testing.T) {
	t.Run("empty entry keeps only request", func(t *testing.T) {
		result := serialize(t, audit.Entry{})
		assert.Contains(t, result, "request", "request dict is always present")
		assert.NotContains(t, result, "result")
		assert.NotContains(t, result, "timing")
		assert.NotContains(t, result, "error")
	})

	t.Run("failure recorded", func(t *testing.T) {
		result := serialize(t, audit.Entry{
			Outcome: audit.OutcomeFailed,
			Stage:   "exchange",
			Error:   "invalid_grant",
		})
		res, ok := result["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "exchange", res["stage"])
		assert.Equal(t, "invalid_grant", result["error"])
		assert.NotContains(t, result, "timing")
	})

	t.Run("partial timing", func(t *testing.T) {
		result := serialize(t, audit.Entry{PromptDuration: time.Second})
		timing, ok := result["timing"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, timing, "prompt")
		assert.NotContains(t, timing, "exchange")
	})
}

func withLogHook(ctx context.Context, hook zerolog.HookFunc) context.Context {
	testLog := log.Logger.With().Logger().Hook(hook)
	return testLog.WithContext(ctx)
}
