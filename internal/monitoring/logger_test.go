package monitoring

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogger(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	log := Component("arbiter")
	log.Info().Msg("tick")

	out := buf.String()
	if !strings.Contains(out, `"component":"arbiter"`) {
		t.Errorf("component field missing from %q", out)
	}
	if !strings.Contains(out, `"message":"tick"`) {
		t.Errorf("message missing from %q", out)
	}
}

func TestSetLoggerNop(t *testing.T) {
	original := Logger()
	defer SetLogger(original)

	SetLogger(zerolog.Nop())
	// must not panic
	log := Component("sequencer")
	log.Debug().Msg("ignored")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"off", zerolog.Disabled, false},
		{"disabled", zerolog.Disabled, false},
		{" Warning ", zerolog.WarnLevel, false},
		{"panic", zerolog.PanicLevel, false},
		{"verbose", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
