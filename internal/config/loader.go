package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/go-homedir"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "TGSTATE_"

// ConfigFileName is looked up in the home directory when no file is given.
const ConfigFileName = "config.yaml"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets an explicit configuration file; it must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges defaults, file, environment and flags into a validated Config.
// flags holds only the flags the user actually set.
func (l *Loader) Load(flags map[string]any) (Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	path, required, err := l.configPath(flags)
	if err != nil {
		return Config{}, err
	}
	if err := l.loadFile(path, required); err != nil {
		return Config{}, err
	}

	if err := l.loadEnv(); err != nil {
		return Config{}, err
	}
	if len(flags) > 0 {
		if err := l.k.Load(mapProvider(flags), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configPath picks the explicit file, else <home>/config.yaml where home is
// taken from flags, environment or defaults in that order.
func (l *Loader) configPath(flags map[string]any) (string, bool, error) {
	if l.filePath != "" {
		p, err := homedir.Expand(l.filePath)
		return p, true, err
	}
	home := l.k.String("home")
	if v := os.Getenv(l.envPrefix + "HOME"); v != "" {
		home = v
	}
	if v, ok := flags["home"].(string); ok && v != "" {
		home = v
	}
	home, err := homedir.Expand(home)
	if err != nil {
		return "", false, fmt.Errorf("expand home: %w", err)
	}
	return filepath.Join(home, ConfigFileName), false, nil
}

func (l *Loader) loadFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// loadEnv maps TGSTATE_ACCEPT_SECRET_CHATS to accept_secret_chats and
// TGSTATE_LOG__LEVEL to log.level.
func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}
