// Package envconfig resolves all NEUROSIM_* environment variables in one
// place. Every getter re-reads the environment so tests can toggle values
// with t.Setenv.
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Host returns the scheme and host for the telemetry server.
// Configurable via NEUROSIM_HOST.
// Default: http://127.0.0.1:11737
func Host() *url.URL {
	defaultPort := "11737"

	s := strings.TrimSpace(Var("NEUROSIM_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins returns the origins the telemetry server accepts
// cross-origin requests from.
// Configurable via NEUROSIM_ORIGINS (comma-separated).
// Always includes the localhost origins.
func AllowedOrigins() (origins []string) {
	if s := Var("NEUROSIM_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// TelemetryDir returns the directory where telemetry databases are written.
// Configurable via NEUROSIM_TELEMETRY.
// Default: $HOME/.neurosim/telemetry
func TelemetryDir() string {
	if s := Var("NEUROSIM_TELEMETRY"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".neurosim", "telemetry")
}

// Seed returns the seed used for deterministic parameter initialization.
// Configurable via NEUROSIM_SEED.
// Default: 0
func Seed() int64 {
	if s := Var("NEUROSIM_SEED"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err != nil {
			slog.Warn("invalid seed, using default", "value", s)
		} else {
			return n
		}
	}

	return 0
}

// LogLevel returns the logging level.
// Configurable via NEUROSIM_DEBUG.
// Values: 0/false = INFO (default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("NEUROSIM_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var returns an environment variable, stripped of surrounding quotes and
// whitespace.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// EnvVar describes one recognized environment variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every recognized variable with its current value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NEUROSIM_DEBUG":     {"NEUROSIM_DEBUG", LogLevel(), "Show additional debug information (e.g. NEUROSIM_DEBUG=1)"},
		"NEUROSIM_HOST":      {"NEUROSIM_HOST", Host(), "IP address for the telemetry server (default 127.0.0.1:11737)"},
		"NEUROSIM_ORIGINS":   {"NEUROSIM_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"NEUROSIM_TELEMETRY": {"NEUROSIM_TELEMETRY", TelemetryDir(), "The path to the telemetry directory"},
		"NEUROSIM_SEED":      {"NEUROSIM_SEED", Seed(), "Seed for deterministic parameter initialization"},
	}
}

// Values returns every recognized variable rendered as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
