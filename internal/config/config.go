// Package config handles loading and persisting user configuration for
// cuecard. Configuration is stored in ~/.cuecard/config.toml and can be
// overridden from the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	dirName  = ".cuecard"
	fileName = "config.toml"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultProvider        = ProviderGemini
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultLogLevel        = "warn"
	defaultRequestTimeout  = 60 * time.Second
	defaultResourceTimeout = 300 * time.Second

	envKeyProvider = "CUECARD_PROVIDER"
	envKeyModel    = "CUECARD_MODEL"
	envKeyGemini   = "GEMINI_API_KEY"
	envKeyOpenAI   = "OPENAI_API_KEY"
	envKeyChatsDir = "CUECARD_CHATS_DIR"
	envKeyLogLevel = "CUECARD_LOG_LEVEL"
	envKeySystem   = "CUECARD_SYSTEM_PROMPT"
	envKeyTemp     = "CUECARD_TEMPERATURE"

	maxTemperature = 2.0

	defaultSystemPrompt = `You are an interview assistant. Answer the question or solve the problem shown as directly as possible.
Lead with the answer, then a short explanation. For coding problems give the approach, its time and space complexity, and clean code.
Use markdown. Keep it brief enough to read at a glance.`
)

// Config holds the user's configuration.
type Config struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model,omitempty"`
	GeminiAPIKey string `toml:"gemini_api_key,omitempty"`
	OpenAIAPIKey string `toml:"openai_api_key,omitempty"`

	SaveLocally    bool   `toml:"save_chats_locally"`
	ShowTranscript bool   `toml:"show_transcription_viewer"`
	ChatsDir       string `toml:"chats_dir,omitempty"`

	SystemPrompt string   `toml:"system_prompt,omitempty"`
	Temperature  *float64 `toml:"temperature,omitempty"`

	LogLevel        string   `toml:"log_level,omitempty"`
	RequestTimeout  Duration `toml:"request_timeout,omitempty"`
	ResourceTimeout Duration `toml:"resource_timeout,omitempty"`
}

// Duration is a time.Duration that reads and writes as "90s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the configuration file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// DefaultChatsDir is where sessions are saved unless chats_dir says otherwise.
func DefaultChatsDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Documents", "cuecard", "saved_chats")
}

func defaults() *Config {
	return &Config{
		Provider:    defaultProvider,
		SaveLocally: true,
		LogLevel:    defaultLogLevel,
	}
}

// Load reads the configuration from disk and environment variables. A
// missing or unreadable file yields the defaults.
func Load() (*Config, error) {
	cfg := readFile()

	if v := os.Getenv(envKeyProvider); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv(envKeyModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(envKeyGemini); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv(envKeyOpenAI); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv(envKeyChatsDir); v != "" {
		cfg.ChatsDir = v
	}
	if v := os.Getenv(envKeyLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(envKeySystem); v != "" {
		cfg.SystemPrompt = v
	}
	if v := os.Getenv(envKeyTemp); v != "" {
		t, err := parseTemperature(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envKeyTemp, err)
		}
		cfg.Temperature = &t
	}
	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > maxTemperature) {
		return nil, fmt.Errorf("temperature %g out of range [0, %g]", *cfg.Temperature, maxTemperature)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = defaultProvider
	}
	if cfg.Provider != ProviderGemini && cfg.Provider != ProviderOpenAI {
		return nil, fmt.Errorf("unknown provider %q (want %q or %q)", cfg.Provider, ProviderGemini, ProviderOpenAI)
	}
	return cfg, nil
}

func readFile() *Config {
	cfg := defaults()
	data, err := os.ReadFile(Path())
	if err == nil {
		_, _ = toml.Decode(string(data), cfg)
	}
	return cfg
}

// save persists the config to disk.
func save(cfg *Config) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}

	return os.WriteFile(Path(), buf.Bytes(), 0o600)
}

// SaveChatsLocally reports whether finished turns should be written to disk.
func (c *Config) SaveChatsLocally() bool {
	return c.SaveLocally
}

// ActiveModel returns the configured model or the provider's default.
func (c *Config) ActiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == ProviderOpenAI {
		return defaultOpenAIModel
	}
	return defaultGeminiModel
}

// APIKey returns the credential for the active provider.
func (c *Config) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// SessionsDir returns chats_dir or the default location.
func (c *Config) SessionsDir() string {
	if c.ChatsDir != "" {
		return expandHome(c.ChatsDir)
	}
	return DefaultChatsDir()
}

// SystemInstruction returns system_prompt, or the built-in interview prompt
// when none is set.
func (c *Config) SystemInstruction() string {
	if strings.TrimSpace(c.SystemPrompt) != "" {
		return c.SystemPrompt
	}
	return defaultSystemPrompt
}

// Timeouts returns the request (response header) and resource (whole
// request) timeouts.
func (c *Config) Timeouts() (request, resource time.Duration) {
	request, resource = defaultRequestTimeout, defaultResourceTimeout
	if c.RequestTimeout.Duration > 0 {
		request = c.RequestTimeout.Duration
	}
	if c.ResourceTimeout.Duration > 0 {
		resource = c.ResourceTimeout.Duration
	}
	return request, resource
}

// SetAPIKey saves the API key for provider to the config file.
func SetAPIKey(provider, key string) error {
	cfg := readFile()
	switch strings.ToLower(provider) {
	case ProviderGemini:
		cfg.GeminiAPIKey = key
	case ProviderOpenAI:
		cfg.OpenAIAPIKey = key
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	return save(cfg)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	cfg := readFile()
	cfg.Model = model
	return save(cfg)
}

// SetProvider saves the provider preference to the config file.
func SetProvider(provider string) error {
	provider = strings.ToLower(provider)
	if provider != ProviderGemini && provider != ProviderOpenAI {
		return fmt.Errorf("unknown provider %q", provider)
	}
	cfg := readFile()
	cfg.Provider = provider
	return save(cfg)
}

// Set updates a single key by its TOML name.
func Set(key, value string) error {
	cfg := readFile()
	switch key {
	case "save_chats_locally", "show_transcription_viewer":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "save_chats_locally" {
			cfg.SaveLocally = b
		} else {
			cfg.ShowTranscript = b
		}
	case "chats_dir":
		cfg.ChatsDir = value
	case "log_level":
		cfg.LogLevel = value
	case "request_timeout", "resource_timeout":
		var d Duration
		if err := d.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if key == "request_timeout" {
			cfg.RequestTimeout = d
		} else {
			cfg.ResourceTimeout = d
		}
	case "provider":
		return SetProvider(value)
	case "model":
		cfg.Model = value
	case "system_prompt":
		cfg.SystemPrompt = value
	case "temperature":
		if value == "" || value == "default" {
			cfg.Temperature = nil
			break
		}
		t, err := parseTemperature(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.Temperature = &t
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return save(cfg)
}

func parseTemperature(s string) (float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if t < 0 || t > maxTemperature {
		return 0, fmt.Errorf("%g out of range [0, %g]", t, maxTemperature)
	}
	return t, nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return strings.Replace(path, "~", home, 1)
		}
	}
	return path
}
