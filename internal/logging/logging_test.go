package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: " warning ", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_JSONFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{Format: "json", Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l = Run(Component(l, "loader"), "1A", "run-1")
	l.Debug().Msg("hidden")
	l.Info().Int64("batch", 3).Msg("batch committed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", lines[0], err)
	}
	for k, want := range map[string]any{
		"component": "loader",
		"annex":     "1A",
		"run_id":    "run-1",
		"batch":     float64(3),
		"message":   "batch committed",
		"level":     "info",
	} {
		if m[k] != want {
			t.Fatalf("field %s = %v, want %v", k, m[k], want)
		}
	}
	if _, ok := m["time"]; !ok {
		t.Fatalf("missing time field: %v", m)
	}
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(Config{}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info().Str("table", "ANEXO_1A_2025_1S").Msg("ready")
	if out := buf.String(); !strings.Contains(out, "ready") || !strings.Contains(out, "table=ANEXO_1A_2025_1S") {
		t.Fatalf("console output = %q", out)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Format: "xml"}, nil); err == nil {
		t.Fatalf("New(format=xml) expected error")
	}
	if _, err := New(Config{Level: "loud"}, nil); err == nil {
		t.Fatalf("New(level=loud) expected error")
	}
}
