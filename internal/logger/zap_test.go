package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		DebugLevel: zapcore.DebugLevel,
		InfoLevel:  zapcore.InfoLevel,
		WarnLevel:  zapcore.WarnLevel,
		ErrorLevel: zapcore.ErrorLevel,
		"bogus":    defaultZapLevel,
		"":         defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WritesToCore(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := New(core)

	log.Debugw("hidden")
	log.Warnw("malformed_telemetry", "topic", "sensors/stue/telemetry")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "malformed_telemetry" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if entry.ContextMap()["topic"] != "sensors/stue/telemetry" {
		t.Fatalf("missing topic field: %v", entry.ContextMap())
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(InfoLevel, FormatJSON)
	b := Get(DebugLevel, FormatConsole)
	if a != b {
		t.Fatalf("expected the same instance")
	}
	if NewNop() == nil {
		t.Fatalf("NewNop returned nil")
	}
}
