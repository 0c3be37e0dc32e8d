package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables already set are not overridden
// and missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides credentials and a few tunables from the environment.
// A token found for Discord or Telegram also enables that channel.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Channels.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&cfg.Channels.Slack.AppToken, "SLACK_APP_TOKEN")

	setString(&cfg.Model.APIKey, "GOOGLE_API_KEY")
	setString(&cfg.Model.APIKey, "LLM_API_KEY")
	setString(&cfg.Model.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Model.Model, "LLM_MODEL")

	if setString(&cfg.Channels.Discord.Token, "DISCORD_BOT_TOKEN") {
		cfg.Channels.Discord.Enabled = true
	}
	if setString(&cfg.Channels.Telegram.Token, "TELEGRAM_BOT_TOKEN") {
		cfg.Channels.Telegram.Enabled = true
	}

	setString(&cfg.Log.Level, "QUALIBOT_LOG_LEVEL")
	if v, ok := os.LookupEnv("QUALIBOT_MAX_CONCURRENT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Router.MaxConcurrent = n
		}
	}
}

func setString(dst *string, key string) bool {
	if v := os.Getenv(key); v != "" {
		*dst = v
		return true
	}
	return false
}
