package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"qualibot/internal/config"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials and model connectivity",
		Long: `Verifies that the configuration loads, every enabled channel can authenticate
and the model endpoint accepts the API key. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qualibot doctor v%s\n\n", version)

			var passed, failed, warned int
			pass := func(check, detail string) { fmt.Fprintf(out, "  [PASS] %-20s %s\n", check, detail); passed++ }
			fail := func(check, detail string) { fmt.Fprintf(out, "  [FAIL] %-20s %s\n", check, detail); failed++ }
			warn := func(check, detail string) { fmt.Fprintf(out, "  [WARN] %-20s %s\n", check, detail); warned++ }

			cfg, err := config.Load(configPath)
			if err != nil {
				fail("Config", err.Error())
				return fmt.Errorf("config invalid")
			}
			pass("Config", resolveConfigPath())

			if err := config.ValidateChannels(cfg); err != nil {
				fail("Channels", err.Error())
			} else {
				pass("Channels", "credentials present")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
			defer cancel()

			if cfg.Model.APIKey == "" {
				fail("Model API key", "not set (GOOGLE_API_KEY or LLM_API_KEY)")
			} else if err := newModel(cfg).Healthy(ctx); err != nil {
				fail("Model", err.Error())
			} else {
				pass("Model", fmt.Sprintf("%s at %s", cfg.Model.Model, cfg.Model.BaseURL))
			}

			if s := cfg.Channels.Slack; s.Enabled && s.BotToken != "" {
				if resp, err := slack.New(s.BotToken).AuthTestContext(ctx); err != nil {
					fail("Slack bot token", err.Error())
				} else {
					pass("Slack bot token", fmt.Sprintf("%s in %s", resp.User, resp.Team))
				}
			}

			if d := cfg.Channels.Discord; d.Enabled && d.Token != "" {
				if err := checkDiscord(d.Token); err != nil {
					fail("Discord token", err.Error())
				} else {
					pass("Discord token", "valid")
				}
			}

			if tg := cfg.Channels.Telegram; tg.Enabled && tg.Token != "" {
				if bot, err := tgbotapi.NewBotAPI(tg.Token); err != nil {
					fail("Telegram token", err.Error())
				} else {
					pass("Telegram token", "@"+bot.Self.UserName)
				}
			}

			if cfg.Metrics.Enabled {
				if err := checkAddr(cfg.Metrics.Addr); err != nil {
					warn("Metrics address", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
				} else {
					pass("Metrics address", cfg.Metrics.Addr+" available")
				}
			}

			fmt.Fprintf(out, "\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}

func checkDiscord(token string) error {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return err
	}
	_, err = s.User("@me")
	return err
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
