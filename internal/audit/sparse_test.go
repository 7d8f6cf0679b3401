package audit

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSparseDict_OmittedWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ev := logger.Info()
	attached := newSparseDict().
		Str("source", "").
		Flag("joined", false).
		Dur("prompt", 0).
		AttachTo(ev, "result")
	ev.Send()

	assert.False(t, attached)
	assert.JSONEq(t, `{"level":"info"}`, buf.String())
}

func TestSparseDict_AttachesSetFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ev := logger.Info()
	attached := newSparseDict().
		Str("source", "memory").
		Str("stage", "").
		Flag("joined", true).
		Dur("prompt", 1500*time.Millisecond).
		AttachTo(ev, "result")
	ev.Send()

	assert.True(t, attached)
	assert.JSONEq(t, `{"level":"info","result":{"source":"memory","joined":true,"prompt":1500}}`, buf.String())
}
