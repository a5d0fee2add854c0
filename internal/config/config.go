package config

// Config holds the application settings shared by every command.
type Config struct {
	// LogFormat is "text" or "json".
	LogFormat string

	// Debug lowers the log level to debug.
	Debug bool

	// Quiet suppresses log output to stderr.
	Quiet bool

	// MetricsAddr, when set, exposes Prometheus metrics over HTTP for the
	// duration of a run (e.g. ":9090").
	MetricsAddr string

	// Warnings collected while loading; surfaced by the caller once a
	// logger exists.
	Warnings []string
}
