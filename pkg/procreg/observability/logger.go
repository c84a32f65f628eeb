// Package observability provides structured logging, metrics, and tracing
// for procreg: slog helpers for registry operations, OpenTelemetry metrics
// and spans behind small interfaces, and no-op implementations for when
// either is disabled.
package observability

import (
	"fmt"
	"log/slog"
)

// EnrichLogger returns a logger carrying registry context. All helpers in
// this package accept a nil logger and do nothing.
func EnrichLogger(logger *slog.Logger, registry string, partitions int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("registry", registry),
		slog.Int("partitions", partitions),
	)
}

// LogRegister logs a successful registration.
func LogRegister(logger *slog.Logger, key any, owner string, partition int) {
	if logger == nil {
		return
	}
	logger.Debug("entry registered",
		slog.String("key", fmt.Sprintf("%v", key)),
		slog.String("owner", owner),
		slog.Int("partition", partition),
	)
}

// LogConflict logs a unique-mode registration conflict. Conflicts are
// expected during name races, hence debug level.
func LogConflict(logger *slog.Logger, key any, owner, holder string) {
	if logger == nil {
		return
	}
	logger.Debug("registration conflict",
		slog.String("key", fmt.Sprintf("%v", key)),
		slog.String("owner", owner),
		slog.String("holder", holder),
	)
}

// LogUnregister logs an explicit unregistration.
func LogUnregister(logger *slog.Logger, key any, owner string, removed int) {
	if logger == nil {
		return
	}
	logger.Debug("entry unregistered",
		slog.String("key", fmt.Sprintf("%v", key)),
		slog.String("owner", owner),
		slog.Int("removed", removed),
	)
}

// LogCleanup logs a crash-driven purge of an owner's entries.
func LogCleanup(logger *slog.Logger, owner string, removed int) {
	if logger == nil {
		return
	}
	logger.Info("owner exited, entries purged",
		slog.String("owner", owner),
		slog.Int("removed", removed),
	)
}

// LogListenerDrop logs a listener event dropped because the listener's
// buffer was full. Best-effort delivery makes this informational only.
func LogListenerDrop(logger *slog.Logger, key any) {
	if logger == nil {
		return
	}
	logger.Warn("listener event dropped",
		slog.String("key", fmt.Sprintf("%v", key)),
	)
}

// LogStop logs registry shutdown.
func LogStop(logger *slog.Logger, entries int) {
	if logger == nil {
		return
	}
	logger.Info("registry stopped",
		slog.Int("entries", entries),
	)
}
