package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for qualibot. It is loaded once at
// startup and passed explicitly to constructors.
type Config struct {
	Assistant AssistantConfig `yaml:"assistant"`
	Model     ModelConfig     `yaml:"model"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Router    RouterConfig    `yaml:"router"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AssistantConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"systemPrompt,omitempty"` // replaces the built-in instruction
}

// ModelConfig configures the OpenAI-compatible completion endpoint.
type ModelConfig struct {
	BaseURL        string  `yaml:"baseURL"`
	APIKey         string  `yaml:"apiKey,omitempty"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxRetries     int     `yaml:"maxRetries"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"` // 0 = unbounded
	MaxTokens      int     `yaml:"maxTokens,omitempty"`
}

// Timeout returns the per-request timeout, zero meaning unbounded.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type ChannelsConfig struct {
	Slack    SlackConfig    `yaml:"slack"`
	Discord  DiscordConfig  `yaml:"discord"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken,omitempty"`
	AppToken string `yaml:"appToken,omitempty"` // required for Socket Mode
}

type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
	GuildID string `yaml:"guildId,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Token     string `yaml:"token,omitempty"`
	ParseMode string `yaml:"parseMode"`
}

type RouterConfig struct {
	MaxConcurrent int `yaml:"maxConcurrent"`
	BufferSize    int `yaml:"bufferSize"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DefaultConfigDir returns the default config directory (~/.qualibot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".qualibot"
	}
	return filepath.Join(home, ".qualibot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the YAML file at path over Defaults(), then applies
// environment overrides and validates. A missing file at the default
// location is not an error: defaults plus environment are used.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	path = ExpandPath(path)

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = []byte(ExpandEnvVars(string(data)))
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// defaults + environment
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	ApplyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks value ranges. Credentials are checked separately by
// ValidateChannels because one-shot commands do not need them.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Model.Model == "" {
		errs = append(errs, "model.model must not be empty")
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		errs = append(errs, "model.temperature must be between 0 and 2")
	}
	if cfg.Model.MaxRetries < 0 || cfg.Model.MaxRetries > 10 {
		errs = append(errs, "model.maxRetries must be between 0 and 10")
	}
	if cfg.Model.TimeoutSeconds < 0 {
		errs = append(errs, "model.timeoutSeconds must be >= 0")
	}
	if cfg.Model.MaxTokens < 0 {
		errs = append(errs, "model.maxTokens must be >= 0")
	}
	if cfg.Router.MaxConcurrent < 1 || cfg.Router.MaxConcurrent > 100 {
		errs = append(errs, "router.maxConcurrent must be between 1 and 100")
	}
	if cfg.Router.BufferSize < 1 {
		errs = append(errs, "router.bufferSize must be >= 1")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateChannels checks that at least one transport is enabled and that
// every enabled transport has its credentials.
func ValidateChannels(cfg *Config) error {
	var errs []string
	ch := cfg.Channels

	if !ch.Slack.Enabled && !ch.Discord.Enabled && !ch.Telegram.Enabled {
		errs = append(errs, "no chat channel is enabled")
	}
	if ch.Slack.Enabled {
		if ch.Slack.BotToken == "" {
			errs = append(errs, "channels.slack.botToken is required (SLACK_BOT_TOKEN)")
		}
		if ch.Slack.AppToken == "" {
			errs = append(errs, "channels.slack.appToken is required (SLACK_APP_TOKEN)")
		}
	}
	if ch.Discord.Enabled && ch.Discord.Token == "" {
		errs = append(errs, "channels.discord.token is required (DISCORD_BOT_TOKEN)")
	}
	if ch.Telegram.Enabled && ch.Telegram.Token == "" {
		errs = append(errs, "channels.telegram.token is required (TELEGRAM_BOT_TOKEN)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("channel configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
