// Package config loads localmind settings from defaults, an optional YAML file and
// LOCALMIND_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/localmind/pkg/backend"
	"github.com/go-go-golems/localmind/pkg/logging"
)

const (
	AppName   = "localmind"
	EnvPrefix = "LOCALMIND"

	DefaultSession     = "demo-session-1"
	DefaultIdleTimeout = 2 * time.Second
)

type BackendSettings struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// HandshakeTimeout bounds the websocket handshake. Zero means no deadline.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout" yaml:"handshake-timeout"`
}

type ChatSettings struct {
	Session     string        `mapstructure:"session" yaml:"session"`
	IdleTimeout time.Duration `mapstructure:"idle-timeout" yaml:"idle-timeout"`
}

type Settings struct {
	Backend BackendSettings  `mapstructure:"backend" yaml:"backend"`
	Chat    ChatSettings     `mapstructure:"chat" yaml:"chat"`
	Log     logging.Settings `mapstructure:"log" yaml:"log"`
}

// SetDefaults registers every key on v so that env lookups and Unmarshal see them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", backend.DefaultBaseURL)
	v.SetDefault("backend.timeout", backend.DefaultConfig().Timeout)
	v.SetDefault("backend.handshake-timeout", time.Duration(0))

	v.SetDefault("chat.session", DefaultSession)
	v.SetDefault("chat.idle-timeout", DefaultIdleTimeout)

	logDefaults := logging.DefaultSettings()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.format", logDefaults.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.with-caller", false)
}

// New returns a viper instance with defaults and environment binding in place.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads configPath, or searches ./localmind.yaml and $HOME/.localmind/config.yaml
// when it is empty. A missing file in the search path is not an error.
func ReadFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", configPath)
		}
		return nil
	}

	for _, candidate := range searchPaths() {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		v.SetConfigFile(candidate)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", candidate)
		}
		return nil
	}
	return nil
}

func searchPaths() []string {
	paths := []string{AppName + ".yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+AppName, "config.yaml"))
	}
	return paths
}

// Load decodes v into Settings and validates the result.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Backend.URL) == "" {
		return errors.New("backend.url is empty")
	}
	if s.Backend.Timeout < 0 {
		return errors.New("backend.timeout must not be negative")
	}
	if s.Backend.HandshakeTimeout < 0 {
		return errors.New("backend.handshake-timeout must not be negative")
	}
	if s.Chat.IdleTimeout <= 0 {
		return errors.New("chat.idle-timeout must be positive")
	}
	return nil
}

// BackendConfig maps the settings onto a backend client configuration.
func (s *Settings) BackendConfig() backend.Config {
	return backend.Config{
		BaseURL: s.Backend.URL,
		Timeout: s.Backend.Timeout,
	}
}
