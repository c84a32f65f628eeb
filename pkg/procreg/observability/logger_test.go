package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNilLoggerSafe(t *testing.T) {
	// Every helper tolerates a nil logger.
	assert.Nil(t, EnrichLogger(nil, "jobs", 4))
	LogRegister(nil, "k", "proc-1", 0)
	LogConflict(nil, "k", "proc-1", "proc-2")
	LogUnregister(nil, "k", "proc-1", 1)
	LogCleanup(nil, "proc-1", 2)
	LogListenerDrop(nil, "k")
	LogStop(nil, 0)
}

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := EnrichLogger(testLogger(&buf), "jobs", 4)
	require.NotNil(t, logger)

	logger.Info("hello")
	out := buf.String()
	assert.Contains(t, out, "registry=jobs")
	assert.Contains(t, out, "partitions=4")
}

func TestLogHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := testLogger(&buf)

	LogRegister(logger, "agent", "proc-1", 2)
	assert.Contains(t, buf.String(), "entry registered")
	assert.Contains(t, buf.String(), "key=agent")
	assert.Contains(t, buf.String(), "partition=2")
	buf.Reset()

	LogConflict(logger, "agent", "proc-2", "proc-1")
	assert.Contains(t, buf.String(), "registration conflict")
	assert.Contains(t, buf.String(), "holder=proc-1")
	buf.Reset()

	LogUnregister(logger, "agent", "proc-1", 1)
	assert.Contains(t, buf.String(), "entry unregistered")
	buf.Reset()

	LogCleanup(logger, "proc-1", 3)
	assert.Contains(t, buf.String(), "owner exited")
	assert.Contains(t, buf.String(), "removed=3")
	buf.Reset()

	LogListenerDrop(logger, "agent")
	assert.Contains(t, buf.String(), "listener event dropped")
	buf.Reset()

	LogStop(logger, 7)
	assert.Contains(t, buf.String(), "registry stopped")
	assert.Contains(t, buf.String(), "entries=7")
}

func TestLogHelpersFormatNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	LogRegister(testLogger(&buf), 42, "proc-1", 0)
	assert.Contains(t, buf.String(), "key=42")
}
