package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"qualibot/internal/bus"
	"qualibot/internal/channel"
	"qualibot/internal/config"
	"qualibot/internal/domain"
	"qualibot/internal/metrics"
	"qualibot/internal/provider"
	"qualibot/internal/responder"
	"qualibot/internal/router"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
	envFiles   []string
)

func main() {
	logger = newLogger(os.Stderr, config.LogConfig{Level: "info", Format: "text"})

	root := &cobra.Command{
		Use:   "qualibot",
		Short: "Chat assistant that answers only when addressed or asked for a tool command",
		Long: `qualibot listens to chat channels and forwards each message to a language model.
It replies when a message addresses the assistant directly ("hey ai ...") or asks
for an action in an external tool, and stays silent otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFiles...)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.qualibot/config.yaml)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default: .env)")

	root.AddCommand(runCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(askCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the log section of the config.
func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig loads the config once and rebuilds the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger = newLogger(os.Stderr, cfg.Log)
	return cfg, nil
}

func newModel(cfg *config.Config) *provider.OpenAI {
	if cfg.Model.APIKey == "" {
		logger.Warn("no model API key configured (GOOGLE_API_KEY or LLM_API_KEY); every reply will be the error notice")
	}
	return provider.NewOpenAI(provider.OpenAIConfig{
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		Model:       cfg.Model.Model,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		MaxRetries:  cfg.Model.MaxRetries,
		Timeout:     cfg.Model.Timeout(),
		Logger:      logger,
	})
}

func newResponder(cfg *config.Config, model domain.Model) *responder.Responder {
	return responder.New(responder.Config{
		Model:         model,
		SystemPrompt:  cfg.Assistant.SystemPrompt,
		AssistantName: cfg.Assistant.Name,
		Logger:        logger,
	})
}

// enabledChannels builds the transports switched on in cfg.
func enabledChannels(cfg *config.Config) []domain.Channel {
	var chans []domain.Channel
	if cfg.Channels.Slack.Enabled {
		chans = append(chans, channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Channels.Slack.BotToken,
			AppToken: cfg.Channels.Slack.AppToken,
			Logger:   logger,
		}))
	}
	if cfg.Channels.Discord.Enabled {
		chans = append(chans, channel.NewDiscord(channel.DiscordConfig{
			Token:   cfg.Channels.Discord.Token,
			GuildID: cfg.Channels.Discord.GuildID,
			Logger:  logger,
		}))
	}
	if cfg.Channels.Telegram.Enabled {
		chans = append(chans, channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		}))
	}
	return chans
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the enabled chat platforms and start answering",
		Long:  "Starts every enabled channel (Slack, Discord, Telegram) and the router. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateChannels(cfg); err != nil {
		logger.Error("could not start the bot, check your tokens", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, newResponder(cfg, newModel(cfg)), enabledChannels(cfg))
}

// serve runs the router and every channel until ctx is done or a channel
// fails. The first channel error cancels the others and is returned.
func serve(ctx context.Context, cfg *config.Config, decider router.Decider, chans []domain.Channel) error {
	messageBus := bus.New(cfg.Router.BufferSize, logger)
	r := router.New(router.Config{
		Decider:     decider,
		Bus:         messageBus,
		Logger:      logger,
		Concurrency: cfg.Router.MaxConcurrent,
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range chans {
		g.Go(func() error {
			if err := ch.Start(gctx, messageBus); err != nil {
				return fmt.Errorf("%s: %w", ch.Name(), err)
			}
			return nil
		})
	}
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Collector.Serve(gctx, cfg.Metrics.Addr, logger)
		})
	}

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		r.Run(gctx)
	}()

	err := g.Wait()
	if err != nil {
		logger.Error("could not start the bot, check your tokens", "err", err)
	}

	logger.Info("shutting down")
	messageBus.Close()

	const shutdownTimeout = 10 * time.Second
	select {
	case <-routerDone:
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
	}
	return err
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal through the full router",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			messageBus := bus.New(cfg.Router.BufferSize, logger)
			r := router.New(router.Config{
				Decider: newResponder(cfg, newModel(cfg)),
				Bus:     messageBus,
				Logger:  logger,
			})
			routerDone := make(chan struct{})
			go func() {
				defer close(routerDone)
				r.Run(ctx)
			}()

			cli := channel.NewCLI(channel.CLIConfig{
				Logger: logger,
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
			})
			err = cli.Start(ctx, messageBus)

			// Let queued messages finish before exiting on EOF.
			messageBus.Close()
			<-routerDone
			return err
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Run one message through the responder and print the decision",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("message must not be empty")
			}

			reply, ok := newResponder(cfg, newModel(cfg)).Decide(cmd.Context(), text)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "(no reply)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qualibot %s\n", version)
		},
	}
}
