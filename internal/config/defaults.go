package config

func Defaults() *Config {
	return &Config{
		Assistant: AssistantConfig{
			Name: "Qualivita Assistant",
		},
		Model: ModelConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
			MaxRetries:  2,
		},
		Channels: ChannelsConfig{
			Slack: SlackConfig{
				Enabled: true,
			},
			Telegram: TelegramConfig{
				ParseMode: "Markdown",
			},
		},
		Router: RouterConfig{
			MaxConcurrent: 1,
			BufferSize:    100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}
