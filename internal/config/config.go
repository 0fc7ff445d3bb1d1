package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"tgstate/internal/domain"
)

// DownloadsDir is the media subdirectory created in every state directory.
const DownloadsDir = "downloads"

// Config holds runtime settings for the client.
type Config struct {
	Home              string        `koanf:"home"`
	Phone             string        `koanf:"phone"`
	TestMode          bool          `koanf:"test_mode"`
	AcceptSecretChats string        `koanf:"accept_secret_chats"`
	FlushInterval     time.Duration `koanf:"flush_interval"`
	AuthPollInterval  time.Duration `koanf:"auth_poll_interval"`
	AuthURL           string        `koanf:"auth_url"`
	Log               LogConfig     `koanf:"log"`
}

// LogConfig mirrors logging.Config without the writer.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in settings as a koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"home":                "~/.tgstate",
		"test_mode":           false,
		"accept_secret_chats": "ask",
		"flush_interval":      5 * time.Second,
		"auth_poll_interval":  100 * time.Millisecond,
		"auth_url":            "http://127.0.0.1:8080",
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// AcceptPolicy parses AcceptSecretChats.
func (c Config) AcceptPolicy() (domain.AcceptPolicy, error) {
	return domain.ParseAcceptPolicy(c.AcceptSecretChats)
}

// StateDir is the per-account directory holding the store files.
func (c Config) StateDir() string {
	if c.Phone == "" {
		return c.Home
	}
	return filepath.Join(c.Home, sanitize(c.Phone))
}

// Validate expands the home directory and checks enumerated values.
func (c *Config) Validate() error {
	home, err := homedir.Expand(c.Home)
	if err != nil {
		return fmt.Errorf("expand home %q: %w", c.Home, err)
	}
	c.Home = home
	if _, err := c.AcceptPolicy(); err != nil {
		return err
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %s", c.FlushInterval)
	}
	if c.AuthPollInterval <= 0 {
		return fmt.Errorf("auth_poll_interval must be positive, got %s", c.AuthPollInterval)
	}
	return nil
}

// sanitize keeps a phone number usable as a single path element.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator {
			return '_'
		}
		return r
	}, s)
}
