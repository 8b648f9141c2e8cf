package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" Warn ", LevelWarn},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Debug("dropped debug")
	Info("dropped info")
	Warn("kept warn", "pages", 19)
	Error("kept error", errors.New("boom"), "stage", "init")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("filtered lines were written:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] kept warn pages=19") {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] kept error err=boom stage=init") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestOddKVDropsTrailingKey(t *testing.T) {
	var b strings.Builder
	writeKVs(&b, "a", 1, "dangling")
	if got := b.String(); got != " a=1" {
		t.Errorf("writeKVs = %q, want %q", got, " a=1")
	}
}
