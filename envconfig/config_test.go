package envconfig

import (
	"log/slog"
	"testing"

	"github.com/neurosim/neurosim/logutil"
)

func TestHost(t *testing.T) {
	cases := map[string]struct {
		value string
		want  string
	}{
		"empty":           {"", "127.0.0.1:11737"},
		"only address":    {"1.2.3.4", "1.2.3.4:11737"},
		"only port":       {":1234", ":1234"},
		"address + port":  {"1.2.3.4:1234", "1.2.3.4:1234"},
		"scheme":          {"http://1.2.3.4", "1.2.3.4:80"},
		"https":           {"https://1.2.3.4", "1.2.3.4:443"},
		"invalid port":    {"1.2.3.4:99999", "1.2.3.4:11737"},
		"trailing quotes": {"\"1.2.3.4:1234\"", "1.2.3.4:1234"},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("NEUROSIM_HOST", tt.value)
			if host := Host(); host.Host != tt.want {
				t.Errorf("Host() = %q, want %q", host.Host, tt.want)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     logutil.LevelTrace,
	}

	for value, want := range cases {
		t.Run("value "+value, func(t *testing.T) {
			t.Setenv("NEUROSIM_DEBUG", value)
			if level := LogLevel(); level != want {
				t.Errorf("LogLevel() = %v, want %v", level, want)
			}
		})
	}
}

func TestSeed(t *testing.T) {
	t.Setenv("NEUROSIM_SEED", "42")
	if got := Seed(); got != 42 {
		t.Errorf("Seed() = %d, want 42", got)
	}

	t.Setenv("NEUROSIM_SEED", "not a number")
	if got := Seed(); got != 0 {
		t.Errorf("Seed() = %d, want 0", got)
	}
}

func TestTelemetryDir(t *testing.T) {
	t.Setenv("NEUROSIM_TELEMETRY", "/tmp/telemetry")
	if got := TelemetryDir(); got != "/tmp/telemetry" {
		t.Errorf("TelemetryDir() = %q, want /tmp/telemetry", got)
	}
}
