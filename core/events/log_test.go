package events_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"veritasor/core/events"
	"veritasor/core/types"
)

type payloadEvent struct {
	evt *types.Event
}

func (e payloadEvent) EventType() string { return e.evt.Type }

func (e payloadEvent) Event() *types.Event { return e.evt }

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare.event" }

func TestLogEmitterWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	emitter := events.LogEmitter{Logger: logger}

	emitter.Emit(payloadEvent{evt: &types.Event{
		Type:       "bonds.redeemed",
		Attributes: map[string]string{"bondId": "7", "amount": "500000"},
	}})

	line := buf.String()
	for _, want := range []string{"ledger event", "event=bonds.redeemed", "bondId=7", "amount=500000"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line missing %q: %s", want, line)
		}
	}
	// Sorted attribute keys keep output stable.
	if strings.Index(line, "amount=") > strings.Index(line, "bondId=") {
		t.Fatalf("attributes not sorted: %s", line)
	}
}

func TestLogEmitterHandlesBareEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	emitter := events.LogEmitter{Logger: logger}

	emitter.Emit(bareEvent{})
	if !strings.Contains(buf.String(), "event=bare.event") {
		t.Fatalf("bare event not logged: %s", buf.String())
	}
	emitter.Emit(nil)
}
