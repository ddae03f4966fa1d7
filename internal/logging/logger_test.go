package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"2", zapcore.DebugLevel, false},
		{"0", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("default logger should be a no-op")
	}
}

func TestLogMessageOnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogMessage("s1", "in", "FRAME", []byte{1, 2, 3})
	if logs.Len() != 0 {
		t.Fatalf("LogMessage at info level wrote %d entries, want 0", logs.Len())
	}

	core, logs = observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	LogMessage("s1", "in", "FRAME", []byte{1, 2, 3})
	if logs.Len() != 1 {
		t.Fatalf("LogMessage at debug level wrote %d entries, want 1", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["hex_dump"] != "010203" {
		t.Errorf("hex_dump = %v, want 010203", fields["hex_dump"])
	}
}

func TestDumpTruncation(t *testing.T) {
	data := make([]byte, maxDumpBytes+10)
	if got := hexDump(data); !strings.HasSuffix(got, "...") || len(got) != maxDumpBytes*2+3 {
		t.Errorf("hexDump() len = %d, want %d with ellipsis", len(got), maxDumpBytes*2+3)
	}
	if got := asciiDump([]byte("ab\x00c")); got != "ab.c" {
		t.Errorf("asciiDump() = %q, want %q", got, "ab.c")
	}
}
