package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	HMAC       HMACConfig       `mapstructure:"hmac"`
	Playground PlaygroundConfig `mapstructure:"playground"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// BackendConfig points the playground at the API under test.
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ProjectID string        `mapstructure:"project_id"`
	ListLimit int           `mapstructure:"list_limit"`
	UserAgent string        `mapstructure:"user_agent"`
}

// HMACConfig pre-fills the API key form. Both values may be left empty.
type HMACConfig struct {
	KeyID   string        `mapstructure:"key_id"`
	Secret  string        `mapstructure:"secret"`
	MaxSkew time.Duration `mapstructure:"max_skew"`
}

type PlaygroundConfig struct {
	ToastDuration    time.Duration `mapstructure:"toast_duration"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	ActionsPerMinute int           `mapstructure:"actions_per_minute"`
	SampleEmail      string        `mapstructure:"sample_email"`
	SamplePassword   string        `mapstructure:"sample_password"`
	CookieName       string        `mapstructure:"cookie_name"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.project_id", "demo-project-id")
	v.SetDefault("backend.list_limit", 5)
	v.SetDefault("backend.user_agent", "nimbus-playground/1.0")

	v.SetDefault("hmac.key_id", "")
	v.SetDefault("hmac.secret", "")
	v.SetDefault("hmac.max_skew", 300*time.Second)

	v.SetDefault("playground.toast_duration", 3500*time.Millisecond)
	v.SetDefault("playground.session_ttl", 2*time.Hour)
	v.SetDefault("playground.actions_per_minute", 60)
	v.SetDefault("playground.sample_email", "demo@example.com")
	v.SetDefault("playground.sample_password", "demo123")
	v.SetDefault("playground.cookie_name", "playground_session")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}

// New returns a viper instance with defaults and environment bindings applied.
// Callers may bind flags on it before passing it to Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("backend.base_url", "BACKEND_BASE_URL", "NIMBUS_API_URL")
	return v
}

// Load reads the config file at path (optional; an empty path or a missing
// file falls back to defaults and environment) and decodes it.
func Load(path string) (*Config, error) {
	v := New()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Backend.BaseURL = strings.TrimRight(config.Backend.BaseURL, "/")
	return &config, nil
}

// BindFlags maps flag names to config keys. Only flags set on the command line
// take effect, so unset flags never mask the file or the environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}
