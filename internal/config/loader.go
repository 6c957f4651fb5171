package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML): the path argument, falling back to RELAY_CONFIG
//  3. env (prefix RELAY_, "__" as the nesting separator)
func Load(path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if strings.TrimSpace(path) == "" {
		path = os.Getenv("RELAY_CONFIG")
	}
	if path = strings.TrimSpace(path); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// RELAY_BANCHO__USERNAME -> bancho.username, RELAY_ENABLE_PM -> enable_pm.
	envProvider := env.Provider("RELAY_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "relay_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	cfg.NormalizeChannels()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the relay cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bancho.Username) == "" {
		return errors.New("bancho.username must not be empty")
	}
	if c.Bancho.Password.IsEmpty() && strings.TrimSpace(c.Bancho.PasswordFile) == "" {
		return errors.New("one of bancho.password or bancho.password_file is required")
	}
	if len(c.Channels) == 0 && !c.EnablePM {
		return errors.New("no channels configured and enable_pm is off")
	}
	for _, ch := range c.Channels {
		if _, ok := c.WebhookFor(ch); !ok {
			return errors.New("no webhook configured for channel " + ch)
		}
	}
	if c.EnablePM {
		if _, ok := c.WebhookFor("PM"); !ok {
			return errors.New(`enable_pm is set but no webhook configured under "PM"`)
		}
	}
	return nil
}
