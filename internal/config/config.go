// Package config resolves vidchat settings from flags, VIDCHAT_* environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jwulff/vidchat/internal/analysis"
	"github.com/jwulff/vidchat/internal/render"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "VIDCHAT"

// Keys.
const (
	KeyBaseURL = "base_url"
	KeyTimeout = "timeout"
	KeyLogFile = "log_file"
	KeyVerbose = "verbose"
	KeyStyle   = "style"
)

var (
	ErrBaseURL = errors.New("base url must be an absolute http(s) url")
	ErrTimeout = errors.New("timeout must be positive")
	ErrStyle   = errors.New("unknown markdown style")
)

// Config is the resolved configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	LogFile string
	Verbose bool
	Style   string
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBaseURL, analysis.DefaultBaseURL)
	v.SetDefault(KeyTimeout, analysis.DefaultTimeout)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyStyle, render.StyleDark)
	return v
}

// BindFlags binds the persistent flags that share a name with a key.
// Flag names use dashes, keys use underscores.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{KeyBaseURL, KeyTimeout, KeyLogFile, KeyVerbose, KeyStyle} {
		f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		Timeout: v.GetDuration(KeyTimeout),
		LogFile: strings.TrimSpace(v.GetString(KeyLogFile)),
		Verbose: v.GetBool(KeyVerbose),
		Style:   firstNonEmpty(strings.TrimSpace(v.GetString(KeyStyle)), render.StyleDark),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = analysis.DefaultBaseURL
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, cfg.Timeout)
	}
	switch cfg.Style {
	case render.StyleDark, render.StyleLight, render.StyleNoTTY:
	default:
		return nil, fmt.Errorf("%w: %q", ErrStyle, cfg.Style)
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
