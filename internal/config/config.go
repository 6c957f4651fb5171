// Package config defines the relay configuration and its loading rules.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// named by RELAY_CONFIG, then RELAY_-prefixed environment variables.
package config

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Secret is a string that masks its value when printed or logged.
// Use Value() when the real string is needed.
type Secret string

func (s Secret) String() string   { return redactString(string(s)) }
func (s Secret) GoString() string { return redactString(string(s)) }
func (s Secret) Value() string    { return string(s) }
func (s Secret) IsEmpty() bool    { return strings.TrimSpace(string(s)) == "" }

// Config contains process configuration.
type Config struct {
	Bancho BanchoConfig `koanf:"bancho"`
	Osu    OsuConfig    `koanf:"osu"`

	// Channels lists the chat channels to join and relay (e.g. "#osu").
	Channels []string `koanf:"channels"`

	// Webhooks maps a source channel to its Discord webhook URL. The key
	// "PM" routes private messages when EnablePM is set.
	Webhooks map[string]Secret `koanf:"webhooks"`

	// EnablePM relays private messages to the webhook under the "PM" key.
	EnablePM bool `koanf:"enable_pm"`

	HTTP HTTPConfig `koanf:"http"`
}

// BanchoConfig holds credentials and connection settings for the chat network.
type BanchoConfig struct {
	Username     string `koanf:"username"`
	Password     Secret `koanf:"password"`
	PasswordFile string `koanf:"password_file"`
	// Addr overrides the IRC endpoint; empty means the production gateway.
	Addr string `koanf:"addr"`
}

// OsuConfig holds the content API settings.
type OsuConfig struct {
	APIKey Secret `koanf:"api_key"`
	// BaseURL overrides the API endpoint; empty means the production API.
	BaseURL string `koanf:"base_url"`
}

// HTTPConfig configures the optional status/stream listener.
type HTTPConfig struct {
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"`
	RateRPS     int      `koanf:"rate_rps"`
	RateBurst   int      `koanf:"rate_burst"`
	Metrics     bool     `koanf:"metrics"`
	AccessLog   bool     `koanf:"access_log"`
	Pprof       bool     `koanf:"pprof"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Webhooks: map[string]Secret{},
		HTTP: HTTPConfig{
			RateRPS:   20,
			RateBurst: 40,
			Metrics:   true,
			AccessLog: true,
		},
	}
}

// NormalizeChannels trims, dedupes, and sorts the channel list. The "PM"
// pseudo-channel is dropped here; it is driven by EnablePM instead.
func (c *Config) NormalizeChannels() {
	seen := make(map[string]struct{}, len(c.Channels))
	out := make([]string, 0, len(c.Channels))
	for _, ch := range c.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" || strings.EqualFold(ch, "PM") {
			continue
		}
		key := strings.ToLower(ch)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ch)
	}
	sort.Strings(out)
	c.Channels = out
}

// WebhookFor returns the destination URL mapped to the channel, if any.
func (c *Config) WebhookFor(channel string) (string, bool) {
	hook, ok := c.Webhooks[channel]
	if !ok || hook.IsEmpty() {
		return "", false
	}
	return hook.Value(), true
}

// Redacted returns a snapshot safe for logging and the /configz endpoint.
func (c *Config) Redacted() map[string]any {
	hooks := make(map[string]string, len(c.Webhooks))
	for ch, hook := range c.Webhooks {
		hooks[ch] = redactString(hook.Value())
	}
	return map[string]any{
		"bancho": map[string]any{
			"username":      c.Bancho.Username,
			"password":      redactString(c.Bancho.Password.Value()),
			"password_file": c.Bancho.PasswordFile,
			"addr":          c.Bancho.Addr,
		},
		"osu": map[string]any{
			"api_key":  redactString(c.Osu.APIKey.Value()),
			"base_url": c.Osu.BaseURL,
		},
		"channels":  append([]string(nil), c.Channels...),
		"webhooks":  hooks,
		"enable_pm": c.EnablePM,
		"http": map[string]any{
			"addr":         c.HTTP.Addr,
			"cors_origins": append([]string(nil), c.HTTP.CORSOrigins...),
			"rate_rps":     c.HTTP.RateRPS,
			"rate_burst":   c.HTTP.RateBurst,
			"metrics":      c.HTTP.Metrics,
			"access_log":   c.HTTP.AccessLog,
			"pprof":        c.HTTP.Pprof,
		},
	}
}

// Summary is a compact one-line description logged at startup.
type Summary struct {
	Username  string `json:"username"`
	Channels  int    `json:"channels"`
	Webhooks  int    `json:"webhooks"`
	EnablePM  bool   `json:"enable_pm"`
	APIKeySet bool   `json:"api_key_set"`
	HTTPAddr  string `json:"http_addr,omitempty"`
}

func (c *Config) Summary() Summary {
	return Summary{
		Username:  c.Bancho.Username,
		Channels:  len(c.Channels),
		Webhooks:  len(c.Webhooks),
		EnablePM:  c.EnablePM,
		APIKeySet: !c.Osu.APIKey.IsEmpty(),
		HTTPAddr:  c.HTTP.Addr,
	}
}

func (c *Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
