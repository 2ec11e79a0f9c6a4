package events

import (
	"log/slog"
	"sort"

	"veritasor/core/types"
)

// payloadCarrier is implemented by engine event wrappers that carry the full
// attribute payload alongside the type tag.
type payloadCarrier interface {
	Event() *types.Event
}

// LogEmitter forwards every emitted event to a structured logger. Attribute
// keys are sorted so log lines stay stable across runs.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			keys := make([]string, 0, len(payload.Attributes))
			for key := range payload.Attributes {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				args = append(args, slog.String(key, payload.Attributes[key]))
			}
		}
	}
	logger.Info("ledger event", args...)
}
