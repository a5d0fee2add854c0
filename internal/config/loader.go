package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/tickwise/tickwise/internal/build"
)

// Loader reads configuration from its file and environment sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	warnings   []string
}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption func(*Loader)

// WithConfigFile sets an explicit configuration file path.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) {
		l.configFile = configFile
	}
}

// Load reads the configuration. Precedence, lowest to highest: defaults,
// the config file (explicit path or <xdg-config>/tickwise/config.yaml), and
// TICKWISE_* environment variables. A missing config file is not an error.
func Load(opts ...LoaderOption) (*Config, error) {
	l := &Loader{v: viper.New()}
	for _, opt := range opts {
		opt(l)
	}

	l.v.SetEnvPrefix(strings.ToUpper(build.Slug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.v.SetDefault("logFormat", "text")
	l.v.SetDefault("debug", false)
	l.v.SetDefault("quiet", false)
	l.v.SetDefault("metricsAddr", "")

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(filepath.Join(xdg.ConfigHome, build.Slug))
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			// A config file that exists but cannot be parsed is fatal;
			// an absent default file is not.
			if l.configFile != "" {
				return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
			}
			l.warnings = append(l.warnings, fmt.Sprintf("config file ignored: %v", err))
		}
	}

	cfg := &Config{
		LogFormat:   l.v.GetString("logFormat"),
		Debug:       l.v.GetBool("debug"),
		Quiet:       l.v.GetBool("quiet"),
		MetricsAddr: l.v.GetString("metricsAddr"),
		Warnings:    l.warnings,
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown logFormat %q, using text", cfg.LogFormat))
		cfg.LogFormat = "text"
	}
	return cfg, nil
}
